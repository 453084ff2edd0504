package dicominfo

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
)

var (
	tagModality          = dicomtag.Tag{Group: 0x0008, Element: 0x0060}
	tagProtocolName      = dicomtag.Tag{Group: 0x0018, Element: 0x1030}
	tagSeriesInstanceUID = dicomtag.Tag{Group: 0x0020, Element: 0x000e}
)

var errNoSeries = errors.New("no series number or instance UID")

// header is the subset of a DICOM file used to group it into a series.
type header struct {
	SeriesNumber      string
	SeriesDescription string
	ProtocolName      string
	Modality          string
	SeriesInstanceUID string
}

// readHeader parses path without its pixel data.
func readHeader(path string) (*header, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ds, err := safelyParse(raw, dicom.ParseOptions{DropPixelData: true})
	if ds == nil || err != nil {
		return nil, fmt.Errorf("error reading dicom: %v", err)
	}

	h := &header{}
	for _, elem := range ds.Elements {
		switch elem.Tag {
		case dicomtag.SeriesNumber:
			h.SeriesNumber = firstString(elem)
		case dicomtag.SeriesDescription:
			h.SeriesDescription = firstString(elem)
		case tagProtocolName:
			h.ProtocolName = firstString(elem)
		case tagModality:
			h.Modality = firstString(elem)
		case tagSeriesInstanceUID:
			h.SeriesInstanceUID = firstString(elem)
		}
	}
	if h.SeriesInstanceUID == "" && h.SeriesNumber == "" {
		return nil, errNoSeries
	}
	return h, nil
}

// safelyParse turns panics raised by the dicom parser on malformed input
// into errors.
func safelyParse(raw []byte, opts dicom.ParseOptions) (ds *element.DataSet, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	p, err := dicom.NewParserFromBytes(raw, nil)
	if err != nil {
		return nil, err
	}
	return p.Parse(opts)
}

func firstString(elem *element.Element) string {
	if elem == nil || len(elem.Value) == 0 {
		return ""
	}
	s, ok := elem.Value[0].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}
