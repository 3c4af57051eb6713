/*
 * @module service/csv_ingest/decode
 * @description 上传内容预处理，去除UTF-8 BOM并对非UTF-8内容做GBK回退解码
 * @architecture 分层架构 - 数据接入层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 原始字节 -> BOM剥离 -> 编码探测 -> UTF-8字节
 * @rules 中文环境Excel导出的CSV通常为GBK编码，解码失败时保留原始内容
 * @dependencies golang.org/x/text/encoding/simplifiedchinese, golang.org/x/text/transform
 * @refs parser.go
 */

package csv_ingest

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeContent 将上传的原始字节归一化为UTF-8文本
func DecodeContent(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)

	if utf8.Valid(data) {
		return data
	}

	// 非UTF-8内容按GBK回退解码
	decoder := simplifiedchinese.GBK.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return data
	}
	return result
}
