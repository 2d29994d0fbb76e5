package core

// GuidelinePack is the structure of a guideline file that can be imported
// into a project, e.g.
//
//	language: go
//	guidelines:
//	  - "no bare except"
//	  - "wrap errors with context"
type GuidelinePack struct {
	// Optional language hint; only used to warn when it does not match the project.
	Language string `yaml:"language"`

	// Rules added to the project in file order.
	Guidelines []string `yaml:"guidelines"`
}
