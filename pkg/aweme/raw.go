package aweme

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	errs "dyfav/pkg/errors"
)

// Document returns the captured item JSON in compact form with every string
// re-encoded as plain UTF-8, so \uXXXX escapes from the capture come out as
// text. Key order and number literals are kept.
func (it Item) Document() (json.RawMessage, error) {
	out, err := unescape(it.Raw)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParse, err, "re-encode item "+it.ID)
	}
	return out, nil
}

type container struct {
	object bool
	n      int
}

// unescape re-emits raw token by token
func unescape(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var (
		buf   bytes.Buffer
		str   bytes.Buffer
		stack []container
	)
	enc := json.NewEncoder(&str)
	enc.SetEscapeHTML(false)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if d, ok := tok.(json.Delim); ok && (d == '}' || d == ']') {
			stack = stack[:len(stack)-1]
			buf.WriteByte(byte(d))
			continue
		}

		if len(stack) > 0 {
			top := &stack[len(stack)-1]
			switch {
			case top.object && top.n%2 == 1:
				buf.WriteByte(':')
			case top.n > 0:
				buf.WriteByte(',')
			}
			top.n++
		}

		switch v := tok.(type) {
		case json.Delim:
			stack = append(stack, container{object: v == '{'})
			buf.WriteByte(byte(v))
		case string:
			str.Reset()
			if err := enc.Encode(v); err != nil {
				return nil, err
			}
			buf.Write(bytes.TrimSuffix(str.Bytes(), []byte{'\n'}))
		case json.Number:
			buf.WriteString(v.String())
		case bool:
			buf.WriteString(strconv.FormatBool(v))
		case nil:
			buf.WriteString("null")
		}
	}
	return buf.Bytes(), nil
}
