package sidecar

import (
	"fmt"
	"log/slog"
	"strings"

	"dcm2bids/internal/bids"
	"dcm2bids/internal/config"
)

// runTemplate is appended to the custom labels of repeated acquisitions.
const runTemplate = "_run-%02d"

// Parser pairs sidecars with config descriptions.
type Parser struct {
	participant   bids.Participant
	descriptions  []config.Description
	searchMethod  string
	caseSensitive bool
	logger        *slog.Logger
}

// Result is the outcome of pairing a set of sidecars.
type Result struct {
	Acquisitions []*bids.Acquisition
	// Unpaired sidecars matched no description.
	Unpaired []*Sidecar
	// Ambiguous sidecars matched more than one description.
	Ambiguous []*Sidecar
}

// NewParser creates a parser for one participant/session.
func NewParser(participant bids.Participant, cfg *config.Config, logger *slog.Logger) *Parser {
	return &Parser{
		participant:   participant,
		descriptions:  cfg.Descriptions,
		searchMethod:  cfg.SearchMethod,
		caseSensitive: cfg.CaseSensitive,
		logger:        logger,
	}
}

// Build pairs every sidecar, in the given order, and numbers the runs of
// acquisitions that share a role.
func (p *Parser) Build(sidecars []*Sidecar) (*Result, error) {
	result := &Result{}

	for _, sc := range sidecars {
		var matched []int
		for i, d := range p.descriptions {
			ok, err := p.Match(sc, d.Criteria)
			if err != nil {
				return nil, fmt.Errorf("description %d: %w", i, err)
			}
			if ok {
				matched = append(matched, i)
			}
		}

		switch len(matched) {
		case 0:
			p.logger.Info("No pairing", "sidecar", sc.Filename())
			result.Unpaired = append(result.Unpaired, sc)
		case 1:
			index := matched[0]
			d := p.descriptions[index]
			acq := bids.NewAcquisition(bids.AcquisitionParams{
				Participant:    p.participant,
				DataType:       d.DataType,
				ModalityLabel:  d.ModalityLabel,
				CustomLabels:   d.CustomLabels,
				SrcSidecar:     sc,
				SidecarChanges: d.SidecarChanges,
				IntendedFor:    d.IntendedFor,
				IndexSidecar:   &index,
			})
			p.logger.Info("Pairing found", "sidecar", sc.Filename(), "acquisition", acq.String())
			result.Acquisitions = append(result.Acquisitions, acq)
		default:
			p.logger.Warn("Several pairings, sidecar skipped", "sidecar", sc.Filename(), "descriptions", matched)
			result.Ambiguous = append(result.Ambiguous, sc)
		}
	}

	result.Acquisitions = NumberRuns(result.Acquisitions)
	return result, nil
}

// NumberRuns appends _run-01, _run-02, ... to the custom labels of every
// group of equal acquisitions, in order. Unique acquisitions are unchanged.
func NumberRuns(acquisitions []*bids.Acquisition) []*bids.Acquisition {
	out := make([]*bids.Acquisition, len(acquisitions))
	copy(out, acquisitions)

	done := make([]bool, len(acquisitions))
	for i := range acquisitions {
		if done[i] {
			continue
		}
		group := []int{i}
		for j := i + 1; j < len(acquisitions); j++ {
			if !done[j] && acquisitions[i].Equal(acquisitions[j]) {
				group = append(group, j)
			}
		}
		for _, idx := range group {
			done[idx] = true
		}
		if len(group) < 2 {
			continue
		}
		for run, idx := range group {
			acq := acquisitions[idx]
			out[idx] = acq.WithCustomLabels(acq.CustomLabels() + fmt.Sprintf(runTemplate, run+1))
		}
	}

	return out
}

// Match reports whether the sidecar satisfies every criterion. A missing
// field matches as the empty string. A list field matches a list pattern
// of the same length, element by element.
func (p *Parser) Match(sc *Sidecar, criteria map[string]interface{}) (bool, error) {
	for tag, pattern := range criteria {
		value, ok := sc.Field(tag)
		if !ok {
			value = ""
		}

		values, isList := value.([]interface{})
		if !isList {
			matched, err := p.compare(value, pattern)
			if err != nil || !matched {
				return false, err
			}
			continue
		}

		patterns, ok := pattern.([]interface{})
		if !ok || len(patterns) != len(values) {
			return false, nil
		}
		for i := range values {
			matched, err := p.compare(values[i], patterns[i])
			if err != nil || !matched {
				return false, err
			}
		}
	}
	return true, nil
}

func (p *Parser) compare(value, pattern interface{}) (bool, error) {
	name := FormatValue(value)
	pat := FormatValue(pattern)

	var expr string
	if p.searchMethod == config.SearchRegex {
		// Anchored at the start only.
		expr = `^(?:` + pat + `)`
		if !p.caseSensitive {
			expr = `(?i)` + expr
		}
	} else {
		if !p.caseSensitive {
			name = strings.ToLower(name)
			pat = strings.ToLower(pat)
		}
		expr = translateWildcard(pat)
	}

	re, err := compilePattern(expr)
	if err != nil {
		return false, fmt.Errorf("invalid pattern %q: %w", pat, err)
	}
	return re.MatchString(name), nil
}
