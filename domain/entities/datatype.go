package entities

// DataTypeNameLen is the exact length the host requires for a data type name.
const DataTypeNameLen = 9

// DataTypeMethods holds the optional persistence callbacks of a data type.
// Hosts without persistence never invoke them.
type DataTypeMethods struct {
	// RDBLoad decodes a value persisted with the given encoding version.
	RDBLoad func(data []byte, encver int) (any, error)
	// RDBSave encodes a value for persistence.
	RDBSave func(value any) ([]byte, error)
	// AOFRewrite returns the commands that rebuild value under key.
	AOFRewrite func(key string, value any) [][]string
	// MemUsage reports the memory used by value in bytes.
	MemUsage func(value any) int
	// Free releases resources held by value.
	Free func(value any)
}

// DataType declares a custom data type registered during load.
type DataType struct {
	Methods DataTypeMethods `json:"-" yaml:"-"`
	// Name is exactly nine characters from [A-Za-z0-9_-].
	Name string `json:"name" yaml:"name" validate:"len=9,typename"`
	// EncodingVersion is the persistence encoding version (0..1023).
	EncodingVersion int `json:"encoding_version" yaml:"encoding_version" validate:"gte=0,lte=1023"`
}
