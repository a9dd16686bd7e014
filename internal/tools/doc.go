// Package tools implements the workspace tools served by the tool server:
//   - read_file: return a file's contents.
//   - list_directory: list the entries of a directory, one full path per line.
//   - shell_command: run a whitelisted program without a shell.
//
// Input schemas are derived from the input structs with GenerateSchema.
package tools
