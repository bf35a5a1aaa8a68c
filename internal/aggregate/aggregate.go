// Package aggregate builds summaries and the persisted result artifact from a
// catalog snapshot.
package aggregate

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/catalog"
)

// Summary contains aggregate counts over a catalog snapshot.
type Summary struct {
	TotalEndpoints int            `json:"totalEndpoints"`
	ByMethod       map[string]int `json:"byMethod"`
	ByType         map[string]int `json:"byType"`
	ByHost         map[string]int `json:"byHost"`
	ByPurpose      map[string]int `json:"byPurpose"`
	BySite         map[string]int `json:"bySite"`
	BySource       map[string]int `json:"bySource"`
	ThirdParty     int            `json:"thirdParty"`
	Sensitive      int            `json:"sensitive"`
	Suspicious     int            `json:"suspicious"`
}

// Summarize tallies records. It is total: an empty snapshot yields zero counts
// and empty maps.
func Summarize(records []catalog.Record) Summary {
	s := Summary{
		TotalEndpoints: len(records),
		ByMethod:       make(map[string]int),
		ByType:         make(map[string]int),
		ByHost:         make(map[string]int),
		ByPurpose:      make(map[string]int),
		BySite:         make(map[string]int),
		BySource:       make(map[string]int),
	}

	for _, r := range records {
		s.ByMethod[r.Method]++
		s.ByType[string(r.Protocol)]++
		s.ByHost[r.Host]++
		s.ByPurpose[string(r.Purpose)]++
		s.BySite[r.Site]++
		s.BySource[string(r.Source)]++
		if r.IsThirdParty {
			s.ThirdParty++
		}
		if r.MaybeSensitive {
			s.Sensitive++
		}
		if r.IsSuspicious {
			s.Suspicious++
		}
	}

	return s
}

// GroupByType groups records by protocol type. Each group keeps snapshot
// order.
func GroupByType(records []catalog.Record) map[string][]catalog.Record {
	groups := make(map[string][]catalog.Record)
	for _, r := range records {
		t := string(r.Protocol)
		groups[t] = append(groups[t], r)
	}
	return groups
}

// ArtifactSummary is the summary block of a persisted artifact.
type ArtifactSummary struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"byType"`
}

// Artifact is the persisted result document.
type Artifact struct {
	Timestamp time.Time                   `json:"timestamp"`
	Target    string                      `json:"target,omitempty"`
	Summary   ArtifactSummary             `json:"summary"`
	APIs      map[string][]catalog.Record `json:"apis"`
}

// NewArtifact builds the artifact for records.
func NewArtifact(ts time.Time, target string, records []catalog.Record) *Artifact {
	s := Summarize(records)
	return &Artifact{
		Timestamp: ts,
		Target:    target,
		Summary: ArtifactSummary{
			Total:  s.TotalEndpoints,
			ByType: s.ByType,
		},
		APIs: GroupByType(records),
	}
}

// ParseArtifact decodes an artifact and checks its counts.
func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	if a.APIs == nil {
		a.APIs = make(map[string][]catalog.Record)
	}
	if a.Summary.ByType == nil {
		a.Summary.ByType = make(map[string]int)
	}
	if err := a.Verify(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Records flattens the grouped records back into discovery order.
func (a *Artifact) Records() []catalog.Record {
	types := make([]string, 0, len(a.APIs))
	for t := range a.APIs {
		types = append(types, t)
	}
	sort.Strings(types)

	records := make([]catalog.Record, 0, a.Summary.Total)
	for _, t := range types {
		records = append(records, a.APIs[t]...)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].FirstSeenAt.Before(records[j].FirstSeenAt)
	})
	return records
}

// Verify checks that the stored summary matches the grouped records.
func (a *Artifact) Verify() error {
	total := 0
	for t, group := range a.APIs {
		if got := a.Summary.ByType[t]; got != len(group) {
			return fmt.Errorf("artifact summary byType[%s] = %d, but %d records stored", t, got, len(group))
		}
		for _, r := range group {
			if string(r.Protocol) != t {
				return fmt.Errorf("record %s has type %s but is grouped under %s", r.Key, r.Protocol, t)
			}
		}
		total += len(group)
	}
	for t, n := range a.Summary.ByType {
		if _, ok := a.APIs[t]; !ok && n != 0 {
			return fmt.Errorf("artifact summary byType[%s] = %d, but no records stored", t, n)
		}
	}
	if total != a.Summary.Total {
		return fmt.Errorf("artifact summary total = %d, but %d records stored", a.Summary.Total, total)
	}
	return nil
}
