// Package core drives the external script toolchain.
//
// Nothing in this package compiles anything. The external binaries do the
// lexing, parsing, code generation and assembly; this package stages the
// source into the toolchain directory, starts the binaries, and decides the
// outcome from the files they leave behind.
//
// # Outcome rules
//
//  1. A non-empty sentinel error file means failure, whatever the exit status
//     and whether or not the bytecode file was written.
//  2. Otherwise the bytecode file existing means success.
//  3. Otherwise the run failed; the exit code and captured streams are kept
//     for diagnostics.
//
// The exit status of the external toolchain is never trusted on its own.
//
// # Tools
//
// DirectCompiler calls the combined entry point once. StagedCompiler writes a
// transient script that runs the preprocessor, compiler and assembler in
// sequence and removes the script afterwards.
package core
