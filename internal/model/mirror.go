package model

// Document is a flat mirror document (sellers, payment methods, module
// situations). Nested upstream objects are flattened with "_" separators and
// every value is stored as its string form.
type Document map[string]string
