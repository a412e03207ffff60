package coverage

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

type xmlCoverage struct {
	XMLName     xml.Name        `xml:"coverage"`
	Coverpoints []xmlCoverpoint `xml:"coverpoint"`
}

type xmlCoverpoint struct {
	Name     string   `xml:"name,attr"`
	Size     int      `xml:"size,attr"`
	Covered  int      `xml:"covered,attr"`
	Closed   bool     `xml:"closed,attr"`
	Disabled bool     `xml:"disabled,attr,omitempty"`
	Bins     []xmlBin `xml:"bin"`
	Missing  []int    `xml:"missing>value,omitempty"`
}

type xmlBin struct {
	Value int    `xml:"value,attr"`
	Hits  uint64 `xml:"hits,attr"`
}

// WriteXML writes one coverpoint element per report.
func WriteXML(w io.Writer, reports []Report) error {
	doc := xmlCoverage{}

	for _, r := range reports {
		cp := xmlCoverpoint{
			Name:     r.Name,
			Size:     r.DomainSize,
			Covered:  len(r.Covered),
			Closed:   r.Closed,
			Disabled: r.Disabled,
			Missing:  r.Missing,
		}

		for _, v := range r.Covered {
			cp.Bins = append(cp.Bins, xmlBin{Value: v, Hits: r.Hits[v]})
		}

		doc.Coverpoints = append(doc.Coverpoints, cp)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding coverage: %w", err)
	}

	_, err := io.WriteString(w, "\n")

	return err
}

// WriteXMLFile writes the reports into a file.
func WriteXMLFile(path string, reports []Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := WriteXML(f, reports); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// ReadXML reads reports written by WriteXML.
func ReadXML(r io.Reader) ([]Report, error) {
	doc := xmlCoverage{}

	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding coverage: %w", err)
	}

	reports := make([]Report, 0, len(doc.Coverpoints))

	for _, cp := range doc.Coverpoints {
		rep := Report{
			Name:       cp.Name,
			DomainSize: cp.Size,
			Covered:    []int{},
			Missing:    cp.Missing,
			Hits:       map[int]uint64{},
			Closed:     cp.Closed,
			Disabled:   cp.Disabled,
		}

		if rep.Missing == nil {
			rep.Missing = []int{}
		}

		for _, b := range cp.Bins {
			rep.Covered = append(rep.Covered, b.Value)
			rep.Hits[b.Value] = b.Hits
		}

		reports = append(reports, rep)
	}

	return reports, nil
}
