package revision

import "fmt"

// ImprovementPatch is a locally produced patch awaiting persistence by the
// artifact publisher. Path and URL are set once stored or published.
type ImprovementPatch struct {
	Analyzer string
	Name     string
	Content  string
	Path     string
	URL      string
}

func (p *ImprovementPatch) String() string {
	switch {
	case p.URL != "":
		return fmt.Sprintf("%s: %s", p.Analyzer, p.URL)
	case p.Path != "":
		return fmt.Sprintf("%s: %s", p.Analyzer, p.Path)
	default:
		return fmt.Sprintf("%s: %s", p.Analyzer, p.Name)
	}
}

// AddImprovementPatch records a patch produced by the named analyzer.
// Patches form an ordered sequence: two calls with the same analyzer name
// both stay in the list, no de-duplication happens.
func (r *Revision) AddImprovementPatch(analyzerName, content string) (*ImprovementPatch, error) {
	if content == "" {
		return nil, fmt.Errorf("empty improvement patch from %s", analyzerName)
	}

	p := &ImprovementPatch{
		Analyzer: analyzerName,
		Name:     fmt.Sprintf("%s-%s.diff", analyzerName, r.DiffPHID),
		Content:  content,
	}
	r.ImprovementPatches = append(r.ImprovementPatches, p)
	return p, nil
}
