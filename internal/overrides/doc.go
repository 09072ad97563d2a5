// Package overrides loads user-authored classification overrides.
//
// The override file is YAML with a single critter_categories section holding
// two maps: species pins a scientific name to a group, groups maps any taxon
// name (scientific or common, at any rank) to a group. Keys are matched with
// the same normalization used for category names.
package overrides
