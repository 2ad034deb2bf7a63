package types

// JSONMap is a loose jsonb payload column.
type JSONMap map[string]any
