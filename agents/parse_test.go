// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCodeBlocks(t *testing.T) {
	text := "Here is the app:\n" +
		"```python path=app/main.py\n" +
		"from fastapi import FastAPI\n" +
		"app = FastAPI()\n" +
		"```\n" +
		"And the config:\n" +
		"```python path=app/config.py\n" +
		"DEBUG = False\n" +
		"```\n" +
		"```\nbare block\n```\n"

	blocks := ExtractCodeBlocks(text)
	require.Len(t, blocks, 3)

	assert.Equal(t, "python", blocks[0].Language)
	assert.Equal(t, "app/main.py", blocks[0].Path)
	assert.Equal(t, "from fastapi import FastAPI\napp = FastAPI()", blocks[0].Content)

	assert.Equal(t, "app/config.py", blocks[1].Path)

	assert.Empty(t, blocks[2].Language)
	assert.Empty(t, blocks[2].Path)
	assert.Equal(t, "bare block", blocks[2].Content)
}

func TestExtractCodeBlocks_Unterminated(t *testing.T) {
	blocks := ExtractCodeBlocks("```sql\nSELECT 1;")

	require.Len(t, blocks, 1)
	assert.Equal(t, "sql", blocks[0].Language)
	assert.Equal(t, "SELECT 1;", blocks[0].Content)
}

func TestExtractCodeBlocks_QuotedPath(t *testing.T) {
	blocks := ExtractCodeBlocks("```ts path=\"src/main.ts\"\nconsole.log(1)\n```")

	require.Len(t, blocks, 1)
	assert.Equal(t, "src/main.ts", blocks[0].Path)
}

func TestFirstCodeBlock(t *testing.T) {
	assert.Equal(t, "SELECT 1;", FirstCodeBlock("intro\n```sql\nSELECT 1;\n```\noutro"))

	// No fences: the whole text is the code
	assert.Equal(t, "SELECT 1;", FirstCodeBlock("  SELECT 1;\n"))
}

func TestCodeBlocksByPath(t *testing.T) {
	text := "```python path=a.py\nA\n```\n```python\nanonymous\n```\n```python path=b.py\nB\n```"

	files := CodeBlocksByPath(text)
	assert.Len(t, files, 2)
	assert.Equal(t, "A", files["a.py"])
	assert.Equal(t, "B", files["b.py"])
}

func TestExtractJSON_FencedBlock(t *testing.T) {
	obj, ok := ExtractJSON("Here you go:\n```json\n{\"complexity\": \"high\", \"score\": 9}\n```")

	require.True(t, ok)
	assert.Equal(t, "high", obj["complexity"])
	assert.Equal(t, float64(9), obj["score"])
}

func TestExtractJSON_EmbeddedObject(t *testing.T) {
	obj, ok := ExtractJSON(`The analysis yields {"patterns": ["cqrs"], "note": "braces { } in strings"} as shown.`)

	require.True(t, ok)
	assert.Equal(t, "braces { } in strings", obj["note"])
}

func TestExtractJSON_None(t *testing.T) {
	_, ok := ExtractJSON("no structured data here")
	assert.False(t, ok)

	_, ok = ExtractJSON("unbalanced { \"a\": 1")
	assert.False(t, ok)
}

func TestExtractSections(t *testing.T) {
	text := "## Endpoints\nGET /products\nPOST /products\n\n" +
		"## Authentication Design\nJWT bearer tokens\n\n" +
		"3. Migration Plan\nadd users first"

	sections := ExtractSections(text)

	assert.Equal(t, "GET /products\nPOST /products", sections["endpoints"])
	assert.Equal(t, "JWT bearer tokens", sections["authentication design"])
	assert.Equal(t, "add users first", sections["migration plan"])
}
