package toolname

import (
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

// =============================================================================
// GENERATE
// =============================================================================

func TestGenerate_DefaultTypeHasNoSuffix(t *testing.T) {
	assert.Equal(t, "test-plugin____myAction", Generate("test-plugin", "myAction", ""))
	assert.Equal(t, "test-plugin____myAction", Generate("test-plugin", "myAction", TypeDefault))
}

func TestGenerate_TypeSuffix(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{TypeBuiltin, "web____search____builtin"},
		{TypeStandalone, "web____search____standalone"},
		{TypeMarkdown, "web____search____markdown"},
		{TypeMCP, "web____search____mcp"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate("web", "search", tt.typ))
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	long := strings.Repeat("operation", 10)
	first := Generate("plugin", long, TypeMCP)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Generate("plugin", long, TypeMCP))
	}
}

func TestGenerate_HashesLongAPIName(t *testing.T) {
	apiName := strings.Repeat("a", 60)
	naive := "test-plugin" + Separator + apiName + Separator + TypeBuiltin

	got := Generate("test-plugin", apiName, TypeBuiltin)

	assert.Contains(t, got, HashPrefix)
	assert.Regexp(t, regexp.MustCompile(`^test-plugin____MD5HASH_[a-f0-9]{12}____builtin$`), got)
	assert.Less(t, len(got), len(naive))
	assert.Less(t, len(got), MaxLength)
}

func TestGenerate_HashesIdentifierWhenStillTooLong(t *testing.T) {
	identifier := strings.Repeat("i", 50)
	apiName := strings.Repeat("n", 20)

	got := Generate(identifier, apiName, "")

	assert.Regexp(t, regexp.MustCompile(`^MD5HASH_[a-f0-9]{12}____MD5HASH_[a-f0-9]{12}$`), got)
	assert.Equal(t, HashName(identifier)+Separator+HashName(apiName), got)
}

func TestGenerate_ExactlyAtLimitTriggersHashing(t *testing.T) {
	// 30 + 4 + 30 = 64 characters: the limit itself is already too long.
	identifier := strings.Repeat("x", 30)
	apiName := strings.Repeat("y", 30)

	got := Generate(identifier, apiName, "")

	assert.Equal(t, identifier+Separator+HashName(apiName), got)
}

func TestGenerate_LongTypeCanStillOverflow(t *testing.T) {
	typ := strings.Repeat("t", 50)

	got := Generate("p", strings.Repeat("n", 40), typ)

	// Both segments hashed, the type is kept verbatim and no further check runs.
	assert.Equal(t, HashName("p")+Separator+HashName(strings.Repeat("n", 40))+Separator+typ, got)
	assert.Greater(t, len(got), MaxLength)
}

func TestHashName(t *testing.T) {
	// md5("search") = 06a943c59f33a34bb5924aaf72cd2995
	assert.Equal(t, "MD5HASH_06a943c59f33", HashName("search"))
	assert.True(t, IsHashed(HashName("anything")))
	assert.False(t, IsHashed("search"))
}

// =============================================================================
// PARSE
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		wire   string
		want   Triple
		wantOK bool
	}{
		{"id and api", "web____search", Triple{"web", "search", TypeDefault}, true},
		{"with type", "web____search____builtin", Triple{"web", "search", TypeBuiltin}, true},
		{"extra segments ignored", "a____b____mcp____zzz", Triple{"a", "b", TypeMCP}, true},
		{"no separator", "search", Triple{"search", "", TypeDefault}, false},
		{"empty api", "web____", Triple{"web", "", TypeDefault}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.wire)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// RESOLVE
// =============================================================================

func TestResolve_Empty(t *testing.T) {
	got := Resolve(nil, MapCatalog{})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolve_RoundTrip(t *testing.T) {
	catalog := MapCatalog{"test-plugin": {"myAction"}, "web": {"search"}}

	triples := []Triple{
		{"test-plugin", "myAction", TypeDefault},
		{"web", "search", TypeBuiltin},
		{"web", "search", TypeMCP},
	}
	for _, tr := range triples {
		got := Resolve([]ToolCall{{ID: "c1", Name: Generate(tr.Identifier, tr.APIName, tr.Type), Arguments: "{}"}}, catalog)
		require.Len(t, got, 1)
		assert.Equal(t, ResolvedCall{ID: "c1", Identifier: tr.Identifier, APIName: tr.APIName, Arguments: "{}", Type: tr.Type}, got[0])
	}
}

func TestResolve_DropsMalformedNames(t *testing.T) {
	got := Resolve([]ToolCall{
		{ID: "1", Name: "no-separator"},
		{ID: "2", Name: "web____"},
		{ID: "3", Name: "web____search"},
	}, nil)

	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)
}

func TestResolve_ReversesHashes(t *testing.T) {
	identifier := strings.Repeat("i", 50)
	apiName := strings.Repeat("n", 20)
	catalog := MapCatalog{identifier: {"other", apiName}}

	got := Resolve([]ToolCall{{ID: "c", Name: Generate(identifier, apiName, TypeBuiltin)}}, catalog)

	require.Len(t, got, 1)
	assert.Equal(t, identifier, got[0].Identifier)
	assert.Equal(t, apiName, got[0].APIName)
	assert.Equal(t, TypeBuiltin, got[0].Type)
}

func TestResolve_KeepsUnresolvedPlaceholders(t *testing.T) {
	apiName := strings.Repeat("n", 70)
	wire := Generate("plugin", apiName, "")

	t.Run("unknown identifier", func(t *testing.T) {
		got := Resolve([]ToolCall{{Name: wire}}, MapCatalog{})
		require.Len(t, got, 1)
		assert.Equal(t, "plugin", got[0].Identifier)
		assert.Equal(t, HashName(apiName), got[0].APIName)
	})

	t.Run("known identifier, unknown api", func(t *testing.T) {
		got := Resolve([]ToolCall{{Name: wire}}, MapCatalog{"plugin": {"something-else"}})
		require.Len(t, got, 1)
		assert.Equal(t, HashName(apiName), got[0].APIName)
	})

	t.Run("hashed identifier without match", func(t *testing.T) {
		name := HashName("ghost") + Separator + "run"
		got := Resolve([]ToolCall{{Name: name}}, MapCatalog{"plugin": {"run"}})
		require.Len(t, got, 1)
		assert.Equal(t, HashName("ghost"), got[0].Identifier)
		assert.Equal(t, "run", got[0].APIName)
	})
}

func TestLookup_ExplicitResults(t *testing.T) {
	catalog := MapCatalog{"web": {"search"}}

	id, found := LookupIdentifier(HashName("web"), catalog)
	assert.True(t, found)
	assert.Equal(t, "web", id)

	_, found = LookupIdentifier(HashName("nope"), catalog)
	assert.False(t, found)

	_, found = LookupAPIName("missing", HashName("search"), catalog)
	assert.False(t, found)

	_, found = LookupIdentifier(HashName("web"), nil)
	assert.False(t, found)
}
