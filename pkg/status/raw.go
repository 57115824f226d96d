package status

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// text decodes JSON strings and numbers into a string. The provider sends
// error codes and timestamps either way. Null and any other JSON type decode
// to the empty string.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*t = ""
	if len(b) == 0 {
		return nil
	}
	switch c := b[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		*t = text(s)
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return nil
		}
		*t = text(n.String())
	}
	return nil
}

// code drops the zero value some records use as "no error".
func (t text) code() string {
	if t == "0" {
		return ""
	}
	return string(t)
}

// number decodes JSON numbers and numeric strings into a float. Anything
// else decodes to zero.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	var t text
	_ = t.UnmarshalJSON(b)
	*n = 0
	if t == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(string(t), 64); err == nil {
		*n = number(f)
	}
	return nil
}

// header holds the fields that drive the state of every record. It is
// decoded apart from the payload, so a malformed payload can only hold a
// success back.
type header struct {
	Status       text `json:"status"`
	SuccessFlag  text `json:"successFlag"`
	ErrorCode    text `json:"errorCode"`
	ErrorMessage text `json:"errorMessage"`
}

func decodeHeader(raw []byte) (header, bool) {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return header{}, false
	}
	return h, true
}

// observe starts an observation from the header with the given token.
func (h header) observe(token text) observation {
	return observation{
		token:   string(token),
		errCode: h.ErrorCode.code(),
		errMsg:  string(h.ErrorMessage),
	}
}
