package introspect

import (
	"strings"
)

// baseType lower-cases a native type and strips any length or precision suffix.
func baseType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(t, "("); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return strings.TrimSuffix(t, " unsigned")
}

// sqliteColumnType maps a declared SQLite type onto a family.
func sqliteColumnType(raw string) (ColumnType, error) {
	var family TypeFamily
	switch baseType(raw) {
	case "integer", "int", "bigint", "smallint", "tinyint", "mediumint":
		family = FamilyInt
	case "real", "float", "double", "double precision", "numeric", "decimal":
		family = FamilyFloat
	case "boolean", "bool":
		family = FamilyBoolean
	case "text", "varchar", "char", "clob", "nvarchar", "character varying":
		family = FamilyString
	case "date", "datetime", "timestamp":
		family = FamilyDateTime
	case "blob":
		family = FamilyBinary
	case "json":
		family = FamilyJSON
	case "uuid":
		family = FamilyUUID
	default:
		return ColumnType{}, unknownType(raw)
	}
	return ColumnType{Family: family, Raw: raw}, nil
}

var postgresUDTFamilies = map[string]TypeFamily{
	"int2": FamilyInt, "int4": FamilyInt, "int8": FamilyInt,
	"float4": FamilyFloat, "float8": FamilyFloat, "numeric": FamilyFloat,
	"bool": FamilyBoolean,
	"text": FamilyString, "varchar": FamilyString, "bpchar": FamilyString,
	"timestamp": FamilyDateTime, "timestamptz": FamilyDateTime, "date": FamilyDateTime,
	"bytea": FamilyBinary,
	"json": FamilyJSON, "jsonb": FamilyJSON,
	"uuid": FamilyUUID,
}

// postgresColumnType maps information_schema data_type/udt_name onto a family.
func postgresColumnType(dataType, udtName string) (ColumnType, error) {
	var family TypeFamily
	switch strings.ToLower(dataType) {
	case "integer", "bigint", "smallint":
		family = FamilyInt
	case "real", "double precision", "numeric":
		family = FamilyFloat
	case "boolean":
		family = FamilyBoolean
	case "text", "character varying", "character":
		family = FamilyString
	case "timestamp without time zone", "timestamp with time zone", "date",
		"time without time zone", "time with time zone":
		family = FamilyDateTime
	case "bytea":
		family = FamilyBinary
	case "json", "jsonb":
		family = FamilyJSON
	case "uuid":
		family = FamilyUUID
	case "user-defined":
		family = FamilyEnum
	case "array":
		f, ok := postgresUDTFamilies[strings.TrimPrefix(udtName, "_")]
		if !ok {
			return ColumnType{}, unknownType(udtName)
		}
		family = f
	default:
		return ColumnType{}, unknownType(dataType)
	}
	raw := udtName
	if raw == "" {
		raw = dataType
	}
	return ColumnType{Family: family, Raw: raw}, nil
}

// mysqlColumnType maps information_schema column_type onto a family.
func mysqlColumnType(columnType string) (ColumnType, error) {
	lower := strings.ToLower(strings.TrimSpace(columnType))
	if strings.HasPrefix(lower, "tinyint(1)") {
		return ColumnType{Family: FamilyBoolean, Raw: columnType}, nil
	}

	var family TypeFamily
	switch baseType(lower) {
	case "int", "integer", "bigint", "smallint", "tinyint", "mediumint":
		family = FamilyInt
	case "float", "double", "decimal", "numeric", "real":
		family = FamilyFloat
	case "bool", "boolean":
		family = FamilyBoolean
	case "varchar", "char", "text", "tinytext", "mediumtext", "longtext":
		family = FamilyString
	case "datetime", "timestamp", "date", "time":
		family = FamilyDateTime
	case "blob", "tinyblob", "mediumblob", "longblob", "binary", "varbinary":
		family = FamilyBinary
	case "json":
		family = FamilyJSON
	case "enum":
		family = FamilyEnum
	default:
		return ColumnType{}, unknownType(columnType)
	}
	return ColumnType{Family: family, Raw: columnType}, nil
}
