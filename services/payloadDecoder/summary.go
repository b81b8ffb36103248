package payloaddecoder

import (
	"errors"
	"unicode/utf8"

	"github.com/kychandar/hammer/ds"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
)

const summaryLimit = 30

var ErrSummaryParse = errors.New("parse error")

// Summary is the short abstract shown in sample lists. Short text payloads
// are shown as is, anything else is elided.
func Summary(enc ds.Encoding, data []byte) (string, error) {
	if !encodingregistry.IsTextual(enc.ID) {
		return "...", nil
	}
	if !utf8.Valid(data) {
		return "", ErrSummaryParse
	}
	if len(data) < summaryLimit {
		return string(data), nil
	}
	return "...", nil
}
