// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// FlattenJSON renders a JSON document as text, one line per leaf value.
// Object keys add a "key: " prefix and array elements an "[i]: " prefix,
// accumulated depth-first in document order:
//
//	{"a": [1, {"b": 2}]}  ->  "a: [0]: 1\na: [1]: b: 2"
//
// Leaves keep their JSON spelling (numbers as written, true, false, null).
// Empty objects and arrays produce no lines.
func FlattenJSON(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var lines []string
	if err := flattenValue(dec, "", &lines); err != nil {
		return "", recallerr.Wrapf(err, recallerr.CodeMemoryAddInvalidInput, "flattening json content")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", recallerr.New(recallerr.CodeMemoryAddInvalidInput, "flattening json content: unexpected data after top-level value")
	}

	return strings.Join(lines, "\n"), nil
}

func flattenValue(dec *json.Decoder, prefix string, lines *[]string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, _ := keyTok.(string)
				if err := flattenValue(dec, prefix+key+": ", lines); err != nil {
					return err
				}
			}
		case '[':
			for i := 0; dec.More(); i++ {
				if err := flattenValue(dec, prefix+"["+strconv.Itoa(i)+"]: ", lines); err != nil {
					return err
				}
			}
		}
		// Closing delimiter.
		_, err := dec.Token()
		return err
	case string:
		*lines = append(*lines, prefix+v)
	case json.Number:
		*lines = append(*lines, prefix+v.String())
	case bool:
		*lines = append(*lines, prefix+strconv.FormatBool(v))
	case nil:
		*lines = append(*lines, prefix+"null")
	}
	return nil
}
