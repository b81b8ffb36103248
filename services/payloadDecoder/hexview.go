package payloaddecoder

import (
	"fmt"
	"strings"

	"github.com/kychandar/hammer/services/pool"
)

const (
	HexPageSize   = 1024
	MinHexColumns = 8
	MaxHexColumns = 16
)

// HexView pages a payload into offset / hex / ascii rows.
type HexView struct {
	data    []byte
	columns int
}

type HexRow struct {
	Offset int
	Hex    string
	ASCII  string
}

// NewHexView clamps columns into [MinHexColumns, MaxHexColumns].
func NewHexView(data []byte, columns int) *HexView {
	columns = max(MinHexColumns, min(MaxHexColumns, columns))
	return &HexView{data: data, columns: columns}
}

func (h *HexView) Columns() int { return h.columns }

// Pages is at least one so an empty payload still renders a page.
func (h *HexView) Pages() int {
	if len(h.data) == 0 {
		return 1
	}
	return (len(h.data) + HexPageSize - 1) / HexPageSize
}

func (h *HexView) page(page int) []byte {
	page = max(0, min(page, h.Pages()-1))
	start := page * HexPageSize
	end := min(start+HexPageSize, len(h.data))
	if start >= end {
		return nil
	}
	return h.data[start:end]
}

// Rows returns the rows of a page; out-of-range pages are clamped.
func (h *HexView) Rows(page int) []HexRow {
	page = max(0, min(page, h.Pages()-1))
	chunk := h.page(page)
	base := page * HexPageSize

	rows := make([]HexRow, 0, (len(chunk)+h.columns-1)/h.columns)
	for off := 0; off < len(chunk); off += h.columns {
		line := chunk[off:min(off+h.columns, len(chunk))]

		var hx, ascii strings.Builder
		for i, b := range line {
			if i > 0 {
				hx.WriteByte(' ')
			}
			fmt.Fprintf(&hx, "%02x", b)
			if b >= 0x20 && b < 0x7f {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}
		rows = append(rows, HexRow{Offset: base + off, Hex: hx.String(), ASCII: ascii.String()})
	}
	return rows
}

// Render formats a page as a classic hex dump.
func (h *HexView) Render(page int) string {
	objPool := pool.GetGlobalPool()
	buf := objPool.Buffer.Get()
	defer objPool.ResetBuffer(buf)

	width := h.columns*3 - 1
	for _, row := range h.Rows(page) {
		fmt.Fprintf(buf, "%08x  %-*s  |%s|\n", row.Offset, width, row.Hex, row.ASCII)
	}
	return buf.String()
}
