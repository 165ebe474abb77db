package configuration

import (
	"bytes"
	"io"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/form3tech-oss/mimic/internal/app/mimic"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type fixtureFile struct {
	Expectations []mimic.ExpectationSpec `yaml:"expectations"`
}

// LoadFixtures registers the expectations of every file matching pattern, in
// lexical file order and document order within a file. A file holds YAML or
// JSON documents, each either a list of expectations or a mapping with an
// "expectations" list.
func LoadFixtures(pattern string, server *mimic.Server) (int, error) {
	files, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid fixtures pattern '%s'", pattern)
	}
	if len(files) == 0 {
		log.Warnf("no fixture files match '%s'", pattern)
		return 0, nil
	}
	sort.Strings(files)

	loaded := 0
	for _, file := range files {
		specs, err := readFixtureFile(file)
		if err != nil {
			return loaded, err
		}
		for i, spec := range specs {
			if _, err := server.Register(spec); err != nil {
				return loaded, errors.Wrapf(err, "unable to register expectation %d from %s", i+1, file)
			}
			loaded++
		}
		log.Infof("loaded %d expectations from %s", len(specs), file)
	}
	return loaded, nil
}

func readFixtureFile(file string) ([]mimic.ExpectationSpec, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read fixture file %s", file)
	}

	var specs []mimic.ExpectationSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "unable to parse fixture file %s", file)
		}
		if len(doc.Content) == 0 {
			continue
		}

		root := doc.Content[0]
		switch root.Kind {
		case yaml.SequenceNode:
			var list []mimic.ExpectationSpec
			if err := root.Decode(&list); err != nil {
				return nil, errors.Wrapf(err, "unable to parse expectations in %s", file)
			}
			specs = append(specs, list...)
		case yaml.MappingNode:
			var f fixtureFile
			if err := root.Decode(&f); err != nil {
				return nil, errors.Wrapf(err, "unable to parse expectations in %s", file)
			}
			specs = append(specs, f.Expectations...)
		default:
			return nil, errors.Errorf("unable to parse fixture file %s, expected a list or a mapping at line %d", file, root.Line)
		}
	}
	return specs, nil
}
