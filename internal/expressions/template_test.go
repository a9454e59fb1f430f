package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate_NoTokens(t *testing.T) {
	out := RenderTemplate("plain string", map[string]any{"key": "value"})
	assert.Equal(t, "plain string", out)
}

func TestRenderTemplate_SimpleSubstitution(t *testing.T) {
	data := map[string]any{"name": "alice"}

	out := RenderTemplate("hello {{name}}", data)
	assert.Equal(t, "hello alice", out)
}

func TestRenderTemplate_MultipleTokens(t *testing.T) {
	data := map[string]any{
		"host": "api.example.com",
		"id":   "42",
	}

	out := RenderTemplate("https://{{host}}/users/{{id}}", data)
	assert.Equal(t, "https://api.example.com/users/42", out)
}

func TestRenderTemplate_WhitespaceInToken(t *testing.T) {
	data := map[string]any{"name": "bob"}

	out := RenderTemplate("hi {{ name }}", data)
	assert.Equal(t, "hi bob", out)
}

func TestRenderTemplate_UnmatchedTokenLeftVerbatim(t *testing.T) {
	data := map[string]any{"known": "yes"}

	out := RenderTemplate("{{known}} and {{unknown}}", data)
	assert.Equal(t, "yes and {{unknown}}", out)
}

func TestRenderTemplate_UnclosedTokenLeftVerbatim(t *testing.T) {
	data := map[string]any{"name": "x"}

	out := RenderTemplate("broken {{name", data)
	assert.Equal(t, "broken {{name", out)
}

func TestRenderTemplate_ScalarTypes(t *testing.T) {
	data := map[string]any{
		"count":   42,
		"rate":    3.14,
		"active":  true,
		"missing": nil,
	}

	t.Run("int", func(t *testing.T) {
		assert.Equal(t, "n=42", RenderTemplate("n={{count}}", data))
	})

	t.Run("float", func(t *testing.T) {
		assert.Equal(t, "r=3.14", RenderTemplate("r={{rate}}", data))
	})

	t.Run("bool", func(t *testing.T) {
		assert.Equal(t, "a=true", RenderTemplate("a={{active}}", data))
	})

	t.Run("nil", func(t *testing.T) {
		assert.Equal(t, "m=null", RenderTemplate("m={{missing}}", data))
	})
}

func TestRenderTemplate_ComplexTypesJSONEncoded(t *testing.T) {
	data := map[string]any{
		"items": []any{"a", "b"},
		"user":  map[string]any{"name": "alice"},
	}

	t.Run("slice", func(t *testing.T) {
		out := RenderTemplate("list={{items}}", data)
		assert.Equal(t, `list=["a","b"]`, out)
	})

	t.Run("map", func(t *testing.T) {
		out := RenderTemplate("obj={{user}}", data)
		assert.Equal(t, `obj={"name":"alice"}`, out)
	})
}

func TestRenderTemplate_DottedPath(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{
			"address": map[string]any{"city": "Lima"},
		},
	}

	out := RenderTemplate("city={{user.address.city}}", data)
	assert.Equal(t, "city=Lima", out)
}

func TestRenderTemplate_DirectKeyWithDots(t *testing.T) {
	// A literal key containing dots wins over path traversal.
	data := map[string]any{
		"user.name": "direct",
		"user":      map[string]any{"name": "nested"},
	}

	out := RenderTemplate("{{user.name}}", data)
	assert.Equal(t, "direct", out)
}

func TestRenderTemplate_NilData(t *testing.T) {
	out := RenderTemplate("keep {{token}}", nil)
	assert.Equal(t, "keep {{token}}", out)
}

func TestRenderTemplates_WalksNestedParams(t *testing.T) {
	data := map[string]any{"id": "7", "token": "secret"}

	params := map[string]any{
		"url": "https://api.example.com/items/{{id}}",
		"headers": map[string]any{
			"Authorization": "Bearer {{token}}",
		},
		"tags":    []any{"{{id}}", "static"},
		"timeout": 30,
	}

	out := RenderTemplates(params, data)

	assert.Equal(t, "https://api.example.com/items/7", out["url"])
	headers := out["headers"].(map[string]any)
	assert.Equal(t, "Bearer secret", headers["Authorization"])
	tags := out["tags"].([]any)
	assert.Equal(t, []any{"7", "static"}, tags)
	assert.Equal(t, 30, out["timeout"])
}

func TestRenderTemplates_DoesNotMutateInput(t *testing.T) {
	data := map[string]any{"id": "9"}
	params := map[string]any{"url": "/items/{{id}}"}

	_ = RenderTemplates(params, data)

	assert.Equal(t, "/items/{{id}}", params["url"])
}

func TestRenderTemplates_Nil(t *testing.T) {
	assert.Nil(t, RenderTemplates(nil, map[string]any{"a": 1}))
}
