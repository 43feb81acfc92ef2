package engine

import (
	"fmt"
	"strings"

	"rollplane/internal/domain"
)

// CheckCharacterSetCollationOwner checks if the character set, collation and
// owner are legal for the engine type.
func CheckCharacterSetCollationOwner(engineType domain.EngineType, characterSet, collation, owner string) error {
	switch engineType {
	case domain.EngineSpanner:
		// Spanner does not support character set and collation at the database level.
		if characterSet != "" {
			return invalidf("Spanner does not support character set, but got %s", characterSet)
		}
		if collation != "" {
			return invalidf("Spanner does not support collation, but got %s", collation)
		}
	case domain.EngineClickHouse:
		// ClickHouse does not support character set and collation at the database level.
		if characterSet != "" {
			return invalidf("ClickHouse does not support character set, but got %s", characterSet)
		}
		if collation != "" {
			return invalidf("ClickHouse does not support collation, but got %s", collation)
		}
	case domain.EngineSnowflake:
		if characterSet != "" {
			return invalidf("Snowflake does not support character set, but got %s", characterSet)
		}
		if collation != "" {
			return invalidf("Snowflake does not support collation, but got %s", collation)
		}
	case domain.EnginePostgres:
		if owner == "" {
			return invalidf("database owner is required for PostgreSQL")
		}
	case domain.EngineRedshift:
		if owner == "" {
			return invalidf("database owner is required for Redshift")
		}
	case domain.EngineSQLite, domain.EngineMongoDB, domain.EngineMSSQL:
		// no-op.
	default:
		if characterSet == "" {
			return invalidf("character set missing for %s", string(engineType))
		}
		// Collation defaults are risky: an explicit default such as
		// "en_US.UTF-8" fails on instances that never installed it.
		if collation == "" {
			return invalidf("collation missing for %s", string(engineType))
		}
	}
	return nil
}

// GenerateCreateStatement renders the bootstrap statement that creates
// databaseName on the given engine. adminUser is the username of the admin
// connection, used by the Postgres and Redshift owner handling.
func GenerateCreateStatement(engineType domain.EngineType, c *domain.CreateDatabaseConfig, databaseName, adminUser string) (string, error) {
	var stmt string
	switch engineType {
	case domain.EngineMySQL, domain.EngineTiDB, domain.EngineMariaDB, domain.EngineOceanBase:
		return fmt.Sprintf("CREATE DATABASE `%s` CHARACTER SET %s COLLATE %s;", databaseName, c.CharacterSet, c.Collation), nil
	case domain.EngineMSSQL:
		return fmt.Sprintf(`CREATE DATABASE "%s";`, databaseName), nil
	case domain.EnginePostgres:
		// Managed Postgres offerings often reject CREATE DATABASE WITH OWNER
		// unless the admin role is already a member of the owner role, so
		// grant first and transfer ownership after creation.
		if adminUser != "" && c.Owner != adminUser {
			stmt = fmt.Sprintf("GRANT \"%s\" TO \"%s\";\n", c.Owner, adminUser)
		}
		if c.Collation == "" {
			stmt = fmt.Sprintf("%sCREATE DATABASE \"%s\" ENCODING %q;", stmt, databaseName, c.CharacterSet)
		} else {
			stmt = fmt.Sprintf("%sCREATE DATABASE \"%s\" ENCODING %q LC_COLLATE %q;", stmt, databaseName, c.CharacterSet, c.Collation)
		}
		return fmt.Sprintf("%s\nALTER DATABASE \"%s\" OWNER TO \"%s\";", stmt, databaseName, c.Owner), nil
	case domain.EngineClickHouse:
		clusterPart := ""
		if c.Cluster != "" {
			clusterPart = fmt.Sprintf(" ON CLUSTER `%s`", c.Cluster)
		}
		return fmt.Sprintf("CREATE DATABASE `%s`%s;", databaseName, clusterPart), nil
	case domain.EngineSnowflake:
		return fmt.Sprintf("CREATE DATABASE %s;", databaseName), nil
	case domain.EngineSQLite:
		// A sentinel statement. A single SQLite file is a database; the
		// driver layer recognizes this and creates the file.
		return fmt.Sprintf("CREATE DATABASE '%s';", databaseName), nil
	case domain.EngineMongoDB:
		// A MongoDB database materializes lazily on first write, so create
		// the requested collection instead.
		return fmt.Sprintf(`db.createCollection("%s");`, c.Table), nil
	case domain.EngineSpanner:
		return fmt.Sprintf("CREATE DATABASE %s;", databaseName), nil
	case domain.EngineOracle:
		return fmt.Sprintf("CREATE DATABASE %s;", databaseName), nil
	case domain.EngineRedshift:
		options := make(map[string]string)
		if adminUser != "" && c.Owner != adminUser {
			options["OWNER"] = fmt.Sprintf("%q", c.Owner)
		}
		stmt := fmt.Sprintf("CREATE DATABASE \"%s\"", databaseName)
		if len(options) > 0 {
			list := make([]string, 0, len(options))
			for k, v := range options {
				list = append(list, fmt.Sprintf("%s=%s", k, v))
			}
			stmt = fmt.Sprintf("%s WITH\n\t%s", stmt, strings.Join(list, "\n\t"))
		}
		return fmt.Sprintf("%s;", stmt), nil
	}
	return "", invalidf("unsupported database type %s", string(engineType))
}
