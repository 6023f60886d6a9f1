package network

// RITVO is the full technology index: region, input, tech, vintage, output.
type RITVO struct {
	Region  string
	Input   string
	Tech    string
	Vintage int
	Output  string
}

// RTV indexes a technology instance: region, tech, vintage.
type RTV struct {
	Region  string
	Tech    string
	Vintage int
}

// RT indexes a logical technology: region, tech.
type RT struct {
	Region string
	Tech   string
}

// Filters holds the valid index tuples that survive network analysis. The
// data loader uses them to restrict which parameter rows are materialized
// into a problem instance.
type Filters struct {
	RITVO    map[RITVO]struct{}
	RTV      map[RTV]struct{}
	RT       map[RT]struct{}
	Techs    StringSet
	Vintages map[int]struct{}
	Inputs   StringSet
	Outputs  StringSet
}

// BuildFilters derives the filters from the pruned technology set. It must
// not be called before Analyze has run.
func (m *Manager) BuildFilters() (*Filters, error) {
	if !m.analyzed {
		return nil, ErrNotAnalyzed
	}
	f := &Filters{
		RITVO:    map[RITVO]struct{}{},
		RTV:      map[RTV]struct{}{},
		RT:       map[RT]struct{}{},
		Techs:    StringSet{},
		Vintages: map[int]struct{}{},
		Inputs:   StringSet{},
		Outputs:  StringSet{},
	}
	for _, bucket := range m.data.availableTechs {
		for t := range bucket {
			f.RITVO[RITVO{t.Region, t.Input, t.Name, t.Vintage, t.Output}] = struct{}{}
			f.RTV[RTV{t.Region, t.Name, t.Vintage}] = struct{}{}
			f.RT[RT{t.Region, t.Name}] = struct{}{}
			f.Techs.Add(t.Name)
			f.Vintages[t.Vintage] = struct{}{}
			f.Inputs.Add(t.Input)
			f.Outputs.Add(t.Output)
		}
	}
	return f, nil
}

// HasRITVO reports whether the full (region, input, tech, vintage, output)
// index survived.
func (f *Filters) HasRITVO(region, input, tech string, vintage int, output string) bool {
	_, ok := f.RITVO[RITVO{region, input, tech, vintage, output}]
	return ok
}

// HasRTV reports whether the (region, tech, vintage) instance survived.
func (f *Filters) HasRTV(region, tech string, vintage int) bool {
	_, ok := f.RTV[RTV{region, tech, vintage}]
	return ok
}

// HasRT reports whether the logical (region, tech) survived in any vintage.
func (f *Filters) HasRT(region, tech string) bool {
	_, ok := f.RT[RT{region, tech}]
	return ok
}

// HasTech reports whether any instance of the named technology survived.
func (f *Filters) HasTech(tech string) bool { return f.Techs.Has(tech) }

// HasVintage reports whether any surviving instance carries the vintage.
func (f *Filters) HasVintage(v int) bool {
	_, ok := f.Vintages[v]
	return ok
}

// HasCommodity reports whether the commodity is a surviving input or output.
func (f *Filters) HasCommodity(c string) bool {
	return f.Inputs.Has(c) || f.Outputs.Has(c)
}
