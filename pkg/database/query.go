package database

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern returns an ILIKE pattern matching term anywhere, with wildcards in term escaped.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// SuffixPattern returns an ILIKE pattern matching values ending in suffix.
func SuffixPattern(suffix string) string {
	return "%" + likeEscaper.Replace(suffix)
}
