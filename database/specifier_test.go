package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpecifier_sqlite(t *testing.T) {
	spec, err := ParseSpecifier("sqlite:/var/lib/app/db.sqlite", "")
	require.NoError(t, err)
	assert.Equal(t, Specifier{Kind: Sqlite, Path: "/var/lib/app/db.sqlite"}, spec)
}

func TestParseSpecifier_sqlite3Alias(t *testing.T) {
	spec, err := ParseSpecifier("sqlite3:rel/path.db", "")
	require.NoError(t, err)
	assert.Equal(t, Specifier{Kind: Sqlite, Path: "rel/path.db"}, spec)
}

func TestParseSpecifier_noSchemeDefaultsToSqlitePath(t *testing.T) {
	spec, err := ParseSpecifier("just/a/path.db", "")
	require.NoError(t, err)
	assert.Equal(t, Specifier{Kind: Sqlite, Path: "just/a/path.db"}, spec)
}

func TestParseSpecifier_unrecognisedSchemeFallsBackToSqlitePath(t *testing.T) {
	spec, err := ParseSpecifier("oracle:foo", "")
	require.NoError(t, err)
	assert.Equal(t, Specifier{Kind: Sqlite, Path: "oracle:foo"}, spec)
}

func TestParseSpecifier_mariadbHostUser(t *testing.T) {
	spec, err := ParseSpecifier("mariadb:db.example:root", "icinga")
	require.NoError(t, err)
	assert.Equal(t, Specifier{Kind: MariaDB, Host: "db.example", User: "root", Database: "icinga"}, spec)
}

func TestParseSpecifier_mariadbFull(t *testing.T) {
	spec, err := ParseSpecifier("mariadb:db.example:root:hunter2:mydb", "icinga")
	require.NoError(t, err)
	assert.Equal(t, "db.example", spec.Host)
	assert.Equal(t, "root", spec.User)
	assert.Equal(t, "hunter2", spec.Password.Reveal())
	assert.Equal(t, "mydb", spec.Database)
}

func TestParseSpecifier_postgresql(t *testing.T) {
	spec, err := ParseSpecifier("postgresql:db.example:app", "appdb")
	require.NoError(t, err)
	assert.Equal(t, PostgreSQL, spec.Kind)
	assert.Equal(t, "appdb", spec.Database)
}

func TestParseSpecifier_serverSpecifierRequiresHostAndUser(t *testing.T) {
	_, err := ParseSpecifier("mariadb:onlyhost", "icinga")
	require.Error(t, err)
}

func TestSpecifier_IdentityIgnoresPassword(t *testing.T) {
	a := Specifier{Kind: MariaDB, Host: "h", User: "u", Password: NewSecret("one"), Database: "DB"}
	b := Specifier{Kind: MariaDB, Host: "h", User: "u", Password: NewSecret("two"), Database: "DB"}
	assert.Equal(t, a.Identity(), b.Identity())
}

func TestSpecifier_IdentityIsCaseInsensitiveOnDatabase(t *testing.T) {
	a := Specifier{Kind: MariaDB, Host: "h", User: "u", Database: "MyDb"}
	b := Specifier{Kind: MariaDB, Host: "h", User: "u", Database: "mydb"}
	assert.Equal(t, a.Identity(), b.Identity())
}

func TestSpecifier_IdentityDiffersByPath(t *testing.T) {
	a := Specifier{Kind: Sqlite, Path: "/a.db"}
	b := Specifier{Kind: Sqlite, Path: "/b.db"}
	assert.NotEqual(t, a.Identity(), b.Identity())
}

func TestSecret_ZeroClearsBackingBytes(t *testing.T) {
	s := NewSecret("hunter2")
	s.Zero()
	assert.Equal(t, "", s.Reveal())
}

func TestOpenMode_Has(t *testing.T) {
	m := ModeMemory | ModeReadWrite
	assert.True(t, m.Has(ModeMemory))
	assert.True(t, m.Has(ModeReadWrite))
	assert.False(t, m.Has(ModeReadOnly))
}

func TestConfig_Validate(t *testing.T) {
	sqliteCfg := &Config{Type: "sqlite", Database: "x.db"}
	assert.NoError(t, sqliteCfg.Validate())

	missingHost := &Config{Type: "mariadb", User: "root", Database: "x"}
	assert.Error(t, missingHost.Validate())

	unknown := &Config{Type: "bogus"}
	assert.Error(t, unknown.Validate())
}

func TestConfig_Specifier(t *testing.T) {
	cfg := &Config{Type: "mariadb", Host: "h", User: "u", Password: "p", Database: "d"}
	spec, err := cfg.Specifier()
	require.NoError(t, err)
	assert.Equal(t, MariaDB, spec.Kind)
	assert.Equal(t, "h", spec.Host)
	assert.Equal(t, "u", spec.User)
	assert.Equal(t, "d", spec.Database)
}
