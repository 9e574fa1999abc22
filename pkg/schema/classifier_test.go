package schema_test

import (
	"testing"

	"github.com/parleyhq/parley/pkg/domain"
	"github.com/parleyhq/parley/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func TestClassify_Partitions(t *testing.T) {
	fields := []domain.Field{
		{Name: "serial", Required: true},
		{Name: "notes"},
		{Name: "status", Required: true, Default: "open"},
		{Name: "channel", Default: "web"},
	}

	class := schema.Classify(fields, nil)

	assert.Equal(t, []string{"serial"}, class.Hard)
	assert.Equal(t, []string{"notes"}, class.Soft)
	assert.Equal(t, []string{"status", "channel"}, class.Hidden, "a default always wins over required")
}

func TestClassify_EmptyStringDefaultIsNoDefault(t *testing.T) {
	fields := []domain.Field{{Name: "name", Required: true, Default: ""}}
	class := schema.Classify(fields, nil)
	assert.Equal(t, []string{"name"}, class.Hard)
	assert.Empty(t, class.Hidden)
}

func TestClassify_SkipsMalformedFields(t *testing.T) {
	fields := []domain.Field{
		{Name: ""},
		{Name: "ok", Required: true},
	}
	class := schema.Classify(fields, nil)
	assert.Equal(t, []string{"ok"}, class.Hard)
	assert.Empty(t, class.Soft)
}

func TestClassify_EmptySchema(t *testing.T) {
	class := schema.Classify(nil, nil)
	assert.Empty(t, class.Hard)
	assert.Empty(t, class.Soft)
	assert.Empty(t, class.Hidden)
	assert.Empty(t, class.Askable())
}

func TestWellFormed_FiltersAndKeepsOrder(t *testing.T) {
	fields := []domain.Field{
		{Name: "b"},
		{Name: ""},
		{Name: "a"},
	}
	kept := schema.WellFormed(fields)
	assert.Equal(t, []string{"b", "a"}, []string{kept[0].Name, kept[1].Name})
}
