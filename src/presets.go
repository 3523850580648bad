package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jinjor/chaos-synth/src/audio"
)

type presetMetaJSON struct {
	Name string `json:"name"`
}
type presetMetaListJSON struct {
	Items []presetMetaJSON `json:"items"`
}

// presetStore keeps one document per preset plus an index in _list.json.
type presetStore struct {
	dir string
}

func newPresetStore(dir string) *presetStore {
	return &presetStore{
		dir: dir,
	}
}

func (ps *presetStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, "_") {
		return "", fmt.Errorf("invalid preset name %q", name)
	}
	return filepath.Join(ps.dir, name+".json"), nil
}

func (ps *presetStore) list() ([]string, error) {
	bytes, err := os.ReadFile(filepath.Join(ps.dir, "_list.json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var metaList presetMetaListJSON
	if err := json.Unmarshal(bytes, &metaList); err != nil {
		return nil, err
	}
	names := make([]string, len(metaList.Items))
	for i, item := range metaList.Items {
		names[i] = item.Name
	}
	return names, nil
}

func (ps *presetStore) apply(name string, engine *audio.Engine) error {
	path, err := ps.path(name)
	if err != nil {
		return err
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return engine.LoadPreset(bytes)
}

func (ps *presetStore) save(name string, engine *audio.Engine) error {
	path, err := ps.path(name)
	if err != nil {
		return err
	}
	bytes, err := engine.MarshalPreset()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(ps.dir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, bytes, 0644); err != nil {
		return err
	}
	names, err := ps.list()
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	names = append(names, name)
	sort.Strings(names)
	metaList := presetMetaListJSON{Items: make([]presetMetaJSON, len(names))}
	for i, n := range names {
		metaList.Items[i] = presetMetaJSON{Name: n}
	}
	list, err := json.MarshalIndent(&metaList, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(ps.dir, "_list.json"), list, 0644)
}
