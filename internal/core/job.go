package core

// Job is one compilation request.
//
// For DirectCompiler, Output and Header are destination file paths; empty
// means next to the source with the derived default name.
//
// For StagedCompiler, Output is a destination directory; empty means the
// artifacts stay in the toolchain directory. Header, when set, overrides the
// header destination.
type Job struct {
	Source string
	Output string
	Header string
}
