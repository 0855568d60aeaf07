package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackflow-io/stackflow/pkg/models"
)

func TestResolveTemplates(t *testing.T) {
	variables := map[string]interface{}{
		"organizationId": "org-1",
		"status":         float64(0),
		"guest":          "Ada",
		"ids":            []interface{}{float64(1), float64(2)},
		"apiSecret": map[string]interface{}{
			"__secure":  true,
			"encrypted": "YWJjZGVm",
		},
	}

	t.Run("WholeStringKeepsType", func(t *testing.T) {
		out, err := ResolveTemplates(map[string]interface{}{
			"status": "{{status}}",
			"ids":    "{{variables.ids}}",
		}, variables)
		require.NoError(t, err)
		assert.Equal(t, float64(0), out["status"])
		assert.Equal(t, []interface{}{float64(1), float64(2)}, out["ids"])
	})

	t.Run("Interpolation", func(t *testing.T) {
		out, err := ResolveTemplates(map[string]interface{}{
			"greeting": "Hello {{guest}}, org {{organizationId}}",
		}, variables)
		require.NoError(t, err)
		assert.Equal(t, "Hello Ada, org org-1", out["greeting"])
	})

	t.Run("NestedStructures", func(t *testing.T) {
		out, err := ResolveTemplates(map[string]interface{}{
			"filter": map[string]interface{}{
				"status": "{{status}}",
				"names":  []interface{}{"{{guest}}"},
			},
		}, variables)
		require.NoError(t, err)
		filter := out["filter"].(map[string]interface{})
		assert.Equal(t, float64(0), filter["status"])
		assert.Equal(t, []interface{}{"Ada"}, filter["names"])
	})

	t.Run("UnknownVariable", func(t *testing.T) {
		_, err := ResolveTemplates(map[string]interface{}{
			"x": "{{missing}}",
		}, variables)
		assert.ErrorContains(t, err, `unknown variable "missing"`)
	})

	t.Run("SecureReferenceStaysSealed", func(t *testing.T) {
		out, err := ResolveTemplates(map[string]interface{}{
			"token": "{{apiSecret}}",
		}, variables)
		require.NoError(t, err)
		assert.True(t, models.IsSecureValue(out["token"]))
	})

	t.Run("SecureInterpolationRejected", func(t *testing.T) {
		_, err := ResolveTemplates(map[string]interface{}{
			"header": "Bearer {{apiSecret}}",
		}, variables)
		assert.ErrorContains(t, err, "cannot be interpolated")
	})

	t.Run("NonTemplateValuesPassThrough", func(t *testing.T) {
		out, err := ResolveTemplates(map[string]interface{}{
			"limit":   float64(5),
			"literal": "no templates here",
		}, variables)
		require.NoError(t, err)
		assert.Equal(t, float64(5), out["limit"])
		assert.Equal(t, "no templates here", out["literal"])
	})
}

func TestClassify(t *testing.T) {
	secure := map[string]interface{}{"__secure": true, "encrypted": "YWJjZGVm"}

	ref, ok := Classify(secure).(SecureRef)
	require.True(t, ok)
	assert.Equal(t, []byte("abcdef"), ref.Value.Encrypted)

	plain, ok := Classify("just a string").(Plain)
	require.True(t, ok)
	assert.Equal(t, "just a string", plain.Value)

	_, ok = Classify(map[string]interface{}{"__secure": false}).(Plain)
	assert.True(t, ok)
}
