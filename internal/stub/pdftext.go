package stub

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText returns the text of a PDF document with one line per text
// positioning operator. Documents the reader cannot open, such as bare
// fragments without a cross-reference table, are returned as raw text.
func ExtractText(content []byte) string {
	text, err := documentText(content)
	if err != nil {
		return string(content)
	}
	return text
}

func documentText(content []byte) (text string, err error) {
	// the reader panics on some malformed objects
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b lineWriter
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		b.pageText(page)
		b.breakLine()
	}
	return b.String(), nil
}

// lineWriter collects decoded text, never emitting blank lines
type lineWriter struct {
	strings.Builder
	midLine bool
}

func (w *lineWriter) text(s string) {
	if s == "" {
		return
	}
	w.WriteString(s)
	w.midLine = true
}

func (w *lineWriter) breakLine() {
	if w.midLine {
		w.WriteByte('\n')
		w.midLine = false
	}
}

func (w *lineWriter) pageText(page pdf.Page) {
	fonts := make(map[string]pdf.Font)
	for _, name := range page.Fonts() {
		fonts[name] = page.Font(name)
	}

	var enc pdf.TextEncoding
	show := func(raw string) {
		if enc == nil {
			w.text(raw)
			return
		}
		w.text(enc.Decode(raw))
	}

	pdf.Interpret(page.V.Key("Contents"), func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "Tf":
			enc = nil
			if n == 2 {
				if font, ok := fonts[args[0].Name()]; ok {
					enc = font.Encoder()
				}
			}
		case "Tj":
			if n == 1 {
				show(args[0].RawString())
			}
		case "'", "\"":
			w.breakLine()
			if n > 0 {
				show(args[n-1].RawString())
			}
		case "TJ":
			if n == 1 {
				arr := args[0]
				for i := 0; i < arr.Len(); i++ {
					if v := arr.Index(i); v.Kind() == pdf.String {
						show(v.RawString())
					}
				}
			}
		case "Td", "TD", "Tm", "T*", "ET":
			w.breakLine()
		}
	})
}
