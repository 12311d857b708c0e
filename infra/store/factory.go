package store

import (
	"errors"

	"github.com/kilianp07/chargesim/core/factory"
	"github.com/kilianp07/chargesim/core/simulation"
)

type fileConf struct {
	Path string `json:"path"`
}

func decodePath(conf map[string]any) (string, error) {
	var c fileConf
	if err := factory.Decode(conf, &c); err != nil {
		return "", err
	}
	if c.Path == "" {
		return "", errors.New("storage path required")
	}
	return c.Path, nil
}

// init registers the persistent simulation stores.
func init() {
	_ = simulation.RegisterStore("sqlite", func(conf map[string]any) (simulation.Store, error) {
		path, err := decodePath(conf)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(path)
	})

	_ = simulation.RegisterStore("jsonl", func(conf map[string]any) (simulation.Store, error) {
		path, err := decodePath(conf)
		if err != nil {
			return nil, err
		}
		return NewJSONLStore(path)
	})
}
