package lists

import (
	"fmt"
	"io"

	"github.com/and161185/dolist/internal/errs"
	"gopkg.in/yaml.v3"
)

// ImportList is one list of an import document.
type ImportList struct {
	Title string       `yaml:"title" json:"title"`
	Tasks []ImportTask `yaml:"tasks" json:"tasks"`
}

// ImportTask is one task of an imported list.
type ImportTask struct {
	Text string `yaml:"text" json:"text"`
	Done bool   `yaml:"done" json:"done"`
}

type importDoc struct {
	Lists []ImportList `yaml:"lists"`
}

// ParseImport reads a YAML document of the form
//
//	lists:
//	  - title: Groceries
//	    tasks:
//	      - text: Milk
//	        done: true
func ParseImport(r io.Reader) ([]ImportList, error) {
	var doc importDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: import document: %v", errs.ErrValidation, err)
	}
	return doc.Lists, nil
}
