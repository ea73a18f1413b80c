package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/codesession/internal/errs"
)

func testDef() ToolDefinition {
	return ToolDefinition{
		Name:    "curl",
		Command: "curl",
		Schema: Schema{
			Options: []Option{
				{Name: "method", Type: TypeString, Short: "X"},
				{Name: "silent", Type: TypeBoolean, Short: "s"},
				{Name: "retries", Type: TypeInteger},
				{Name: "headers", Type: TypeArray},
			},
			Positional: []Positional{{Name: "url", Type: TypeString, Required: true}},
		},
		Recipes: map[string]Recipe{
			"get": {
				Preset: map[string]any{"method": "GET"},
				Params: map[string]ParamSpec{"url": {}},
			},
		},
	}
}

func TestBuildRecipeMergesPresetAndAppliesDefaults(t *testing.T) {
	def := testDef()
	def.Recipes["get"] = Recipe{
		Preset: map[string]any{"method": "GET"},
		Params: map[string]ParamSpec{
			"url":     {},
			"retries": {Default: 3, HasDefault: true},
		},
	}

	argv, err := Build(def, "get", map[string]any{"url": "http://x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"curl", "-X", "GET", "--retries", "3", "http://x"}, argv)
}

func TestBuildRecipeRejectsUnknownArgument(t *testing.T) {
	def := testDef()
	_, err := Build(def, "get", map[string]any{"bogus": "x"})
	require.Error(t, err)
	assert.Equal(t, errs.KindUnknownArgument, errs.KindOf(err))
}

func TestBuildRecipeRejectsUnknownRecipeName(t *testing.T) {
	def := testDef()
	_, err := Build(def, "missing", nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestBuildEscapeHatchValidatesAgainstSchemaKeys(t *testing.T) {
	def := testDef()
	argv, err := Build(def, "", map[string]any{"method": "POST", "silent": true, "url": "http://x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"curl", "-X", "POST", "-s", "http://x"}, argv)

	_, err = Build(def, "", map[string]any{"bogus": 1})
	require.Error(t, err)
	assert.Equal(t, errs.KindUnknownArgument, errs.KindOf(err))
}

func TestBuildArgvOrdersOptionsThenPositionals(t *testing.T) {
	def := testDef()
	argv, err := Build(def, "", map[string]any{
		"headers": []string{"A:1", "B:2"},
		"url":     "http://x",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"curl", "--headers", "A:1", "--headers", "B:2", "http://x"}, argv)
}

func TestBuildArgvRejectsMissingRequiredPositional(t *testing.T) {
	def := testDef()
	_, err := Build(def, "", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, errs.KindMissingArgument, errs.KindOf(err))
}

func TestBuildArgvRejectsWrongOptionType(t *testing.T) {
	def := testDef()
	_, err := Build(def, "", map[string]any{"silent": "yes", "url": "http://x"})
	require.Error(t, err)
	assert.Equal(t, errs.KindArgumentTypeError, errs.KindOf(err))
}

func TestAsIntegerAcceptsIntFloatAndNumericString(t *testing.T) {
	s, err := asInteger("n", 5)
	require.NoError(t, err)
	assert.Equal(t, "5", s)

	s, err = asInteger("n", float64(7))
	require.NoError(t, err)
	assert.Equal(t, "7", s)

	_, err = asInteger("n", 7.5)
	require.Error(t, err)

	s, err = asInteger("n", "9")
	require.NoError(t, err)
	assert.Equal(t, "9", s)

	_, err = asInteger("n", "abc")
	require.Error(t, err)
}
