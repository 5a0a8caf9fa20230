// Package results owns the on-disk layout of benchmark runs and the atomic
// JSON writes used to store them.
//
// A run is laid out as:
//
//	<root>/<pair>/<game>/<idx>_<experiment>/experiment_<experiment>.json
//	<root>/<pair>/<game>/<idx>_<experiment>/episode_<n>/instance.json
//	<root>/<pair>/<game>/<idx>_<experiment>/episode_<n>/interactions.json
//	<root>/<pair>/<game>/<idx>_<experiment>/episode_<n>/requests.json
package results

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultRoot is used when no results directory is configured.
const DefaultRoot = "results"

// Document file names.
const (
	InstanceFile     = "instance.json"
	InteractionsFile = "interactions.json"
	RequestsFile     = "requests.json"
)

// Participant is the part of a model needed to name a dialogue pair.
type Participant interface {
	Name() string
	Temperature() float64
}

// Root returns dir, or DefaultRoot when dir is empty.
func Root(dir string) string {
	if dir == "" {
		return DefaultRoot
	}
	return dir
}

// ParticipantName renders a single participant as "<name>-t<temperature>".
func ParticipantName(p Participant) string {
	return p.Name() + "-t" + strconv.FormatFloat(p.Temperature(), 'f', -1, 64)
}

// PairName names a dialogue pair as "<a>--<b>". A single participant plays
// against itself.
func PairName(participants ...Participant) (string, error) {
	switch len(participants) {
	case 1:
		n := ParticipantName(participants[0])
		return n + "--" + n, nil
	case 2:
		return ParticipantName(participants[0]) + "--" + ParticipantName(participants[1]), nil
	default:
		return "", fmt.Errorf("a dialogue pair needs one or two participants, got %d", len(participants))
	}
}

// GameDir is <root>/<pair>/<game>.
func GameDir(root, pair, game string) string {
	return filepath.Join(Root(root), pair, game)
}

// ExperimentDirName is "<idx>_<experiment>".
func ExperimentDirName(idx int, experiment string) string {
	return strconv.Itoa(idx) + "_" + experiment
}

// ExperimentDir is the directory holding one experiment's episodes.
func ExperimentDir(root, pair, game string, idx int, experiment string) string {
	return filepath.Join(GameDir(root, pair, game), ExperimentDirName(idx, experiment))
}

// ExperimentFile is the path of the experiment configuration document.
func ExperimentFile(experimentDir, experiment string) string {
	return filepath.Join(experimentDir, "experiment_"+experiment+".json")
}

// EpisodeDir is the directory of the n-th episode of an experiment.
func EpisodeDir(experimentDir string, n int) string {
	return filepath.Join(experimentDir, "episode_"+strconv.Itoa(n))
}

// SanitizeName makes s safe to use as a single path element.
func SanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}
