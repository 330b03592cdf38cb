// Package runtimeconfig reads the process-level configuration a cmd/
// binary starts from: default socket timeouts and retry intervals from a
// YAML file (gopkg.in/yaml.v2, the same library the teacher's
// parameterstore parser reaches for to re-marshal YAML-shaped input),
// optionally overridden by a profile section in an INI file
// (gopkg.in/ini.v1, a dependency the teacher's own go.mod carries for
// machine-local profile overrides). Neither the reactor core nor any
// protocol package imports this: it is confined to process startup,
// keeping spec.md's "no persistence" non-goal intact for the core
// itself.
package runtimeconfig

import (
	"os"
	"time"

	"github.com/npio/scaleproto/core"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v2"
)

// Defaults mirrors the subset of core.Config a deployment commonly
// wants to pin at startup instead of accepting spec.md's built-in
// defaults.
type Defaults struct {
	SendTimeout    time.Duration `yaml:"send_timeout"`
	RecvTimeout    time.Duration `yaml:"recv_timeout"`
	RetryIvl       time.Duration `yaml:"retry_ivl"`
	RetryIvlMax    time.Duration `yaml:"retry_ivl_max"`
	ReqResendIvl   time.Duration `yaml:"req_resend_ivl"`
	SurveyDeadline time.Duration `yaml:"survey_deadline"`
}

// LoadYAML reads Defaults from a YAML file such as a cmd/ example's
// -config flag target.
func LoadYAML(path string) (Defaults, error) {
	var d Defaults
	raw, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return d, err
	}
	return d, nil
}

// ApplyProfile overrides d's fields from the named section of an INI
// file, the mechanism a deployment uses to keep one shared YAML
// default file while giving a specific machine its own retry tuning
// without editing the shared file.
func ApplyProfile(d Defaults, iniPath, section string) (Defaults, error) {
	cfg, err := ini.Load(iniPath)
	if err != nil {
		return d, err
	}
	sec := cfg.Section(section)
	if v := sec.Key("retry_ivl").String(); v != "" {
		if dur, perr := time.ParseDuration(v); perr == nil {
			d.RetryIvl = dur
		}
	}
	if v := sec.Key("retry_ivl_max").String(); v != "" {
		if dur, perr := time.ParseDuration(v); perr == nil {
			d.RetryIvlMax = dur
		}
	}
	return d, nil
}

// Options converts Defaults into the core.Option values a façade
// socket applies at creation time.
func (d Defaults) Options() []core.Option {
	var opts []core.Option
	if d.SendTimeout != 0 {
		opts = append(opts, core.SendTimeout(d.SendTimeout))
	}
	if d.RecvTimeout != 0 {
		opts = append(opts, core.RecvTimeout(d.RecvTimeout))
	}
	if d.RetryIvl != 0 {
		opts = append(opts, core.RetryIvl(d.RetryIvl))
	}
	if d.RetryIvlMax != 0 {
		opts = append(opts, core.RetryIvlMax(d.RetryIvlMax))
	}
	if d.ReqResendIvl != 0 {
		opts = append(opts, core.ReqResendIvl(d.ReqResendIvl))
	}
	if d.SurveyDeadline != 0 {
		opts = append(opts, core.SurveyDeadline(d.SurveyDeadline))
	}
	return opts
}
