// Command crittersync reconciles MacDive critter categories and names with
// iNaturalist.
//
// The diff subcommands only read the MacDive database. The apply subcommands
// print the same plan and write it only when --yes is given.
package main
