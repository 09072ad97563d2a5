// Package catalog reads and writes the MacDive critter tables.
//
// MacDive keeps its log in a Core Data SQLite store. Critters live in
// ZCRITTER, categories in ZCRITTERCATEGORY, and the next primary key for each
// entity is tracked in Z_PRIMARYKEY. Store loads the rows the reconciler needs;
// Executor applies plans back to the file, one transaction per entry, under an
// advisory file lock so two runs never write at once.
package catalog
