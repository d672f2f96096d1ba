// Package output checks retrieved documents and writes them to disk.
package output

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	nwmerrors "github.com/saveenergy/nwm/pkg/errors"
)

// WaterMLRoot is the root element of a WaterML 1.1 GetValues response.
const WaterMLRoot = "timeSeriesResponse"

// CheckWaterML verifies that data is a WaterML time series response and
// returns the number of <value> elements it carries. Services answer
// failed queries with HTML or JSON bodies, which must never reach the
// output file.
func CheckWaterML(data []byte) (int, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	rootSeen := false
	values := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, nwmerrors.ErrInvalidDocument("response is not well-formed XML", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !rootSeen {
			if start.Name.Local != WaterMLRoot {
				return 0, nwmerrors.ErrInvalidDocument(
					fmt.Sprintf("unexpected root element <%s>, want <%s>", start.Name.Local, WaterMLRoot), nil)
			}
			rootSeen = true
			continue
		}
		if start.Name.Local == "value" {
			values++
		}
	}
	if !rootSeen {
		return 0, nwmerrors.ErrInvalidDocument("response is empty", nil)
	}
	return values, nil
}
