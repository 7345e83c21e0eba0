package plugin

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/moosync/exthost/internal/protocol"
)

// Runner command tags.
const (
	RunnerGetInstalledExtensions = "getInstalledExtensions"
	RunnerFindNewExtensions      = "findNewExtensions"
	RunnerGetExtensionIcon       = "getExtensionIcon"
	RunnerToggleExtensionStatus  = "toggleExtensionStatus"
	RunnerRemoveExtension        = "removeExtension"
	RunnerStopProcess            = "stopProcess"
	RunnerGetDisplayName         = "getDisplayName"
)

// ExtensionDetail describes an installed extension to the frontend.
type ExtensionDetail struct {
	Name          string   `json:"name" yaml:"name"`
	PackageName   string   `json:"packageName" yaml:"packageName"`
	Desc          *string  `json:"desc" yaml:"desc,omitempty"`
	Author        *string  `json:"author" yaml:"author,omitempty"`
	Version       string   `json:"version" yaml:"version"`
	HasStarted    bool     `json:"hasStarted" yaml:"hasStarted"`
	State         string   `json:"state" yaml:"state"`
	Entry         string   `json:"entry" yaml:"entry"`
	Preferences   []string `json:"preferences" yaml:"preferences"`
	ExtensionPath string   `json:"extensionPath" yaml:"extensionPath"`
	ExtensionIcon *string  `json:"extensionIcon" yaml:"extensionIcon,omitempty"`
}

func detailOf(inst *Instance) ExtensionDetail {
	m := inst.Manifest()
	icon := m.Icon
	state := inst.State()
	return ExtensionDetail{
		Name:          m.DisplayName,
		PackageName:   m.Name,
		Author:        m.Author,
		Version:       m.Version,
		HasStarted:    state.HasStarted(),
		State:         state.String(),
		Entry:         m.EntryPath(),
		Preferences:   []string{},
		ExtensionPath: m.EntryPath(),
		ExtensionIcon: &icon,
	}
}

// GetInstalledExtensions lists every loaded extension in load order.
func (s *System) GetInstalledExtensions() []ExtensionDetail {
	instances := s.manager.GetExtensions("")
	out := make([]ExtensionDetail, 0, len(instances))
	for _, inst := range instances {
		out = append(out, detailOf(inst))
	}
	return out
}

// FindNewExtensions spawns plugins installed since the last scan.
func (s *System) FindNewExtensions(ctx context.Context) error {
	return s.SpawnExtensions(ctx)
}

// GetExtensionIcon returns the icon of the first extension matching name,
// nil when none does. An empty name matches every extension.
func (s *System) GetExtensionIcon(name string) *string {
	instances := s.manager.GetExtensions(name)
	if len(instances) == 0 {
		return nil
	}
	icon := instances[0].Manifest().Icon
	return &icon
}

// GetDisplayName returns the display name of the first extension matching
// name, nil when none does.
func (s *System) GetDisplayName(name string) *string {
	instances := s.manager.GetExtensions(name)
	if len(instances) == 0 {
		return nil
	}
	display := instances[0].Manifest().DisplayName
	return &display
}

// RemoveExtension drops an extension from the registry.
func (s *System) RemoveExtension(name string) error {
	return s.manager.RemoveExtension(name)
}

// HandleRunnerCommand answers a tagged runner command,
// {"type": tag, "data": {"packageName": ...}}. The result is ready for JSON
// encoding; nil stands for the empty reply.
func (s *System) HandleRunnerCommand(ctx context.Context, raw []byte) (any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid json", protocol.ErrMalformed)
	}
	kind := gjson.GetBytes(raw, "type").String()
	pkg := gjson.GetBytes(raw, "data.packageName").String()

	s.log.Info().Str("runner", kind).Str("package", pkg).Msg("runner command")
	switch kind {
	case RunnerGetInstalledExtensions:
		return s.GetInstalledExtensions(), nil
	case RunnerFindNewExtensions:
		if err := s.FindNewExtensions(ctx); err != nil {
			s.log.Warn().Err(err).Msg("some extensions failed to spawn")
		}
		return nil, nil
	case RunnerGetExtensionIcon:
		return s.GetExtensionIcon(pkg), nil
	case RunnerGetDisplayName:
		return s.GetDisplayName(pkg), nil
	case RunnerRemoveExtension:
		if err := s.RemoveExtension(pkg); err != nil {
			s.log.Debug().Err(err).Msg("remove extension")
		}
		return nil, nil
	case RunnerToggleExtensionStatus, RunnerStopProcess:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, kind)
	default:
		return nil, fmt.Errorf("%w: %q", protocol.ErrUnknownCommand, kind)
	}
}
