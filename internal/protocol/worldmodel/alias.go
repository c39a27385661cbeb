package worldmodel

// AliasTable maps attribute names to compact integer aliases in both
// directions. Aliases are assigned from zero in first-seen order and are never
// removed or reused. A table belongs to one connection and is not safe for
// concurrent use.
type AliasTable struct {
	byName  map[string]uint32
	byAlias []string
}

func NewAliasTable() *AliasTable {
	return &AliasTable{byName: make(map[string]uint32)}
}

// GetOrCreate returns the alias for name, assigning the next one if name is
// unseen. isNew tells the caller to announce the name before referencing it.
func (t *AliasTable) GetOrCreate(name string) (alias uint32, isNew bool) {
	if alias, ok := t.byName[name]; ok {
		return alias, false
	}
	alias = uint32(len(t.byAlias))
	t.byName[name] = alias
	t.byAlias = append(t.byAlias, name)
	return alias, true
}

func (t *AliasTable) Lookup(name string) (uint32, bool) {
	alias, ok := t.byName[name]
	return alias, ok
}

func (t *AliasTable) Name(alias uint32) (string, bool) {
	if uint64(alias) >= uint64(len(t.byAlias)) {
		return "", false
	}
	return t.byAlias[alias], true
}

func (t *AliasTable) Len() int {
	return len(t.byAlias)
}

// Names returns every known name indexed by alias.
func (t *AliasTable) Names() []string {
	return append([]string(nil), t.byAlias...)
}
