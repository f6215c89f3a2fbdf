// Package annotations reads match fixture files: a calibration input plus
// the AI and reviewer annotations of one match.
package annotations

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/review-cli/internal/model"
)

// File is the on-disk layout of a match fixture. Every section is optional.
type File struct {
	MatchID     int64                   `json:"match_id" yaml:"match_id"`
	Calibration *model.CalibrationInput `json:"calibration,omitempty" yaml:"calibration,omitempty"`
	Events      []model.Event           `json:"events,omitempty" yaml:"events,omitempty"`
	Tracks      []model.Track           `json:"tracks,omitempty" yaml:"tracks,omitempty"`
	Balls       []model.BallPosition    `json:"ball_positions,omitempty" yaml:"ball_positions,omitempty"`
}

// Annotations returns the file's records as one match.
func (f *File) Annotations() *model.MatchAnnotations {
	return &model.MatchAnnotations{
		MatchID: f.MatchID,
		Events:  f.Events,
		Tracks:  f.Tracks,
		Balls:   f.Balls,
	}
}

// Empty reports whether the file carries no annotation records.
func (f *File) Empty() bool {
	return len(f.Events) == 0 && len(f.Tracks) == 0 && len(f.Balls) == 0
}

// Load reads a fixture from path. Files ending in .json are decoded as JSON,
// everything else as YAML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "annotations: read %s", path)
	}
	f, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, eris.Wrapf(err, "annotations: load %s", path)
	}
	return f, nil
}

// Parse decodes fixture bytes and normalises them.
func Parse(data []byte, isJSON bool) (*File, error) {
	var f File
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, eris.Wrap(err, "annotations: parse json")
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, eris.Wrap(err, "annotations: parse yaml")
		}
	}
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

// normalize fills in the match id and default origin of every record and
// rejects records that point at another match or reuse an id.
func (f *File) normalize() error {
	if f.MatchID <= 0 && f.Calibration != nil {
		f.MatchID = f.Calibration.MatchID
	}
	if f.MatchID <= 0 {
		return eris.New("annotations: match_id is required")
	}
	if f.Calibration != nil {
		if f.Calibration.MatchID == 0 {
			f.Calibration.MatchID = f.MatchID
		}
		if f.Calibration.MatchID != f.MatchID {
			return eris.Errorf("annotations: calibration is for match %d, file is for match %d",
				f.Calibration.MatchID, f.MatchID)
		}
	}

	ids := newIDSet("event")
	for i := range f.Events {
		e := &f.Events[i]
		if err := f.claim(ids, e.ID, &e.MatchID, &e.Origin); err != nil {
			return err
		}
	}
	ids = newIDSet("track")
	for i := range f.Tracks {
		t := &f.Tracks[i]
		if err := f.claim(ids, t.ID, &t.MatchID, &t.Origin); err != nil {
			return err
		}
	}
	ids = newIDSet("ball position")
	for i := range f.Balls {
		b := &f.Balls[i]
		if err := f.claim(ids, b.ID, &b.MatchID, &b.Origin); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) claim(ids *idSet, id int64, matchID *int64, origin *model.Origin) error {
	if err := ids.add(id); err != nil {
		return err
	}
	switch *matchID {
	case 0:
		*matchID = f.MatchID
	case f.MatchID:
	default:
		return eris.Errorf("annotations: %s %d belongs to match %d, file is for match %d",
			ids.kind, id, *matchID, f.MatchID)
	}
	if *origin == "" {
		*origin = model.OriginAI
	}
	return nil
}

type idSet struct {
	kind string
	seen map[int64]bool
}

func newIDSet(kind string) *idSet {
	return &idSet{kind: kind, seen: make(map[int64]bool)}
}

func (s *idSet) add(id int64) error {
	if id <= 0 {
		return eris.Errorf("annotations: %s id must be positive, got %d", s.kind, id)
	}
	if s.seen[id] {
		return eris.Errorf("annotations: duplicate %s id %d", s.kind, id)
	}
	s.seen[id] = true
	return nil
}
