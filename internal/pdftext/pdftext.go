package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned for payloads the PDF parser rejects.
var ErrUnreadable = errors.New("unreadable pdf")

// Line is a row of text on a page. Pages are 1-based.
type Line struct {
	Page int
	Text string
}

// Info summarizes a parsed document.
type Info struct {
	Pages int
}

// Inspect parses data and reports its page count.
func Inspect(data []byte) (info Info, err error) {
	r, err := open(data)
	if err != nil {
		return Info{}, err
	}
	defer recoverParse(&err)
	n := r.NumPage()
	if n <= 0 {
		return Info{}, fmt.Errorf("%w: no pages", ErrUnreadable)
	}
	return Info{Pages: n}, nil
}

// Lines returns text rows top to bottom, page by page. Empty rows are skipped.
func Lines(data []byte) (lines []Line, err error) {
	r, err := open(data)
	if err != nil {
		return nil, err
	}
	defer recoverParse(&err)

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range rows {
			var b strings.Builder
			for _, word := range row.Content {
				b.WriteString(word.S)
			}
			if text := strings.TrimSpace(b.String()); text != "" {
				lines = append(lines, Line{Page: i, Text: text})
			}
		}
	}
	return lines, nil
}

// PlainText returns the document text as the parser lays it out.
func PlainText(data []byte) (text string, err error) {
	r, err := open(data)
	if err != nil {
		return "", err
	}
	defer recoverParse(&err)
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func open(data []byte) (r *pdf.Reader, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnreadable)
	}
	defer recoverParse(&err)
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return r, nil
}

// The parser panics on some malformed inputs.
func recoverParse(err *error) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("%w: %v", ErrUnreadable, rec)
	}
}
