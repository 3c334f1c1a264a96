package main

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"

	yml "gopkg.in/yaml.v3"

	"github.com/svn-tools/svn2git/export"
)

// RepositoryDecl declares one target Git repository: its name, the branches
// the conversion is expected to populate, an optional path prefix applied to
// every file, and an optional submodule relation to a parent repository.
type RepositoryDecl struct {
	Name            string   `yaml:"name"`
	Branches        []string `yaml:"branches,omitempty"`
	Prefix          string   `yaml:"prefix,omitempty"`
	SubmoduleInRepo string   `yaml:"submodule-in-repo,omitempty"`
	SubmodulePath   string   `yaml:"submodule-path,omitempty"`
}

// Match maps SVN paths onto a repository and branch. The regex is anchored at
// the start of the path; the part of the path after the match is the path
// within the branch. Repository, branch and prefix may reference capture
// groups with $1, $2, ... An empty repository means "ignore these paths".
type Match struct {
	Match      string `yaml:"match"`
	Min        int    `yaml:"min,omitempty"`
	Max        int    `yaml:"max,omitempty"`
	Repository string `yaml:"repository,omitempty"`
	Branch     string `yaml:"branch,omitempty"`
	Prefix     string `yaml:"prefix,omitempty"`
	Annotated  bool   `yaml:"annotated,omitempty"`

	re *regexp.Regexp
}

// Ruleset captures the yaml description of a conversion: the repositories to
// create and the path matches that route nodes into them. The first match
// wins.
type Ruleset struct {
	Filename     string           `yaml:"-"`
	Repositories []RepositoryDecl `yaml:"repositories"`
	Matches      []*Match         `yaml:"matches"`
}

// NewRuleset loads and compiles a rules file.
func NewRuleset(filename string) (*Ruleset, error) {
	rules := &Ruleset{Filename: filename}

	f, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	if err := yml.Unmarshal(f, rules); err != nil {
		return nil, fmt.Errorf("rules: %s: %w", filename, err)
	}

	names := make(map[string]bool, len(rules.Repositories))
	for _, repo := range rules.Repositories {
		if repo.Name == "" {
			return nil, fmt.Errorf("rules: %s: repository with no name", filename)
		}
		if names[repo.Name] {
			return nil, fmt.Errorf("rules: %s: duplicate repository %s", filename, repo.Name)
		}
		names[repo.Name] = true
	}
	for _, repo := range rules.Repositories {
		if repo.SubmoduleInRepo != "" && !names[repo.SubmoduleInRepo] {
			return nil, fmt.Errorf("rules: %s: repository %s is a submodule of undeclared repository %s",
				filename, repo.Name, repo.SubmoduleInRepo)
		}
	}

	for i, m := range rules.Matches {
		if m.Match == "" {
			return nil, fmt.Errorf("rules: %s: match #%d has no pattern", filename, i+1)
		}
		pattern := m.Match
		if !strings.HasPrefix(pattern, "^") {
			pattern = "^" + pattern
		}
		if m.re, err = regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("rules: %s: match #%d: %w", filename, i+1, err)
		}
		if m.Max == 0 {
			m.Max = math.MaxInt32
		}
	}

	return rules, nil
}

// MatchResult is one routed path: the rule that matched, the expanded
// repository, qualified branch and prefix, and the remainder of the path
// inside the branch.
type MatchResult struct {
	Rule         *Match
	Repository   string
	Branch       string
	Prefix       string
	SvnPrefix    string
	InBranchPath string
}

// MatchPath routes an SVN path at a given revision through the ruleset.
// Returns false if no rule matches.
func (rules *Ruleset) MatchPath(path string, revnum int) (MatchResult, bool) {
	for _, m := range rules.Matches {
		if revnum < m.Min || revnum > m.Max {
			continue
		}
		loc := m.re.FindStringSubmatchIndex(path)
		if loc == nil {
			continue
		}

		expand := func(template string) string {
			return string(m.re.ExpandString(nil, template, path, loc))
		}

		res := MatchResult{
			Rule:         m,
			Repository:   expand(m.Repository),
			Branch:       expand(m.Branch),
			Prefix:       expand(m.Prefix),
			SvnPrefix:    strings.TrimSuffix(path[:loc[1]], "/"),
			InBranchPath: strings.TrimPrefix(path[loc[1]:], "/"),
		}
		if res.Branch == "" {
			res.Branch = "master"
		}
		res.Branch = export.QualifyRef(res.Branch)
		return res, true
	}
	return MatchResult{}, false
}
