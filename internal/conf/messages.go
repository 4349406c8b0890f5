package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/usecase"
	"github.com/DevRickLin/feishu-media-bridge/pkg/logger"
)

// MessagesConfig contains all reply texts loaded from YAML.
// Empty values fall back to the built-in defaults.
type MessagesConfig struct {
	Errors   ErrorMessages    `yaml:"errors"`
	Progress ProgressMessages `yaml:"progress"`
	Admin    AdminMessages    `yaml:"admin"`
	Commands CommandMessages  `yaml:"commands"`
	Help     HelpMessages     `yaml:"help"`
}

// ErrorMessages maps error kinds to replies
type ErrorMessages struct {
	AccessDenied      string `yaml:"access_denied"`
	AdminOnly         string `yaml:"admin_only"`
	Busy              string `yaml:"busy"`
	NoResults         string `yaml:"no_results"`
	NoActiveSelection string `yaml:"no_active_selection"`
	InvalidSelection  string `yaml:"invalid_selection"`
	FetchError        string `yaml:"fetch_error"`
	ConversionError   string `yaml:"conversion_error"`
	SendError         string `yaml:"send_error"`
	TooLarge          string `yaml:"too_large"`
	Cancelled         string `yaml:"cancelled"`
	Timeout           string `yaml:"timeout"`
	BadRequest        string `yaml:"bad_request"`
	Internal          string `yaml:"internal"`
}

// ProgressMessages contains pipeline replies
type ProgressMessages struct {
	Downloading   string `yaml:"downloading"`
	Converting    string `yaml:"converting"`
	SongCaption   string `yaml:"song_caption"`
	VideoCaption  string `yaml:"video_caption"`
	FileCaption   string `yaml:"file_caption"`
	ResultsHeader string `yaml:"results_header"`
	ResultsFooter string `yaml:"results_footer"`
	QualityHeader string `yaml:"quality_header"`
}

// AdminMessages contains replies to admin commands
type AdminMessages struct {
	PublicOn        string `yaml:"public_on"`
	PrivateOn       string `yaml:"private_on"`
	Allowed         string `yaml:"allowed"`
	AlreadyAllowed  string `yaml:"already_allowed"`
	Denied          string `yaml:"denied"`
	NotAllowed      string `yaml:"not_allowed"`
	AllowListHeader string `yaml:"allow_list_header"`
	AllowListEmpty  string `yaml:"allow_list_empty"`
}

// CommandMessages contains usage and misc command replies
type CommandMessages struct {
	GroupOnly        string `yaml:"group_only"`
	GroupInfo        string `yaml:"group_info"`
	NothingToConvert string `yaml:"nothing_to_convert"`
	BadFormat        string `yaml:"bad_format"`
	CancelRequested  string `yaml:"cancel_requested"`
	NothingToCancel  string `yaml:"nothing_to_cancel"`
	UsageSong        string `yaml:"usage_song"`
	UsagePlay        string `yaml:"usage_play"`
	UsageVideo       string `yaml:"usage_video"`
	UsageConvert     string `yaml:"usage_convert"`
	UsageAllow       string `yaml:"usage_allow"`
	UsageDeny        string `yaml:"usage_deny"`
}

// HelpMessages contains the help listing
type HelpMessages struct {
	User  string `yaml:"user"`
	Admin string `yaml:"admin"`
}

// LoadMessagesConfig loads reply texts from YAML file
func LoadMessagesConfig(configPath string) (*MessagesConfig, error) {
	log := logger.Component("config")

	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/messages.yaml",
			"/etc/feishu-media-bridge/messages.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "messages.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("messages config not found: %s", configPath)
		}
		log.Info("no messages.yaml found, using defaults")
		return &MessagesConfig{}, nil
	}

	log.Info("loading messages", logger.FieldPath, loadedPath)

	var config MessagesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse messages.yaml: %w", err)
	}
	return &config, nil
}

// ToReplyTexts overlays the configured texts on the defaults
func (c *MessagesConfig) ToReplyTexts() *usecase.ReplyTexts {
	t := usecase.DefaultReplyTexts()

	set(&t.AccessDenied, c.Errors.AccessDenied)
	set(&t.AdminOnly, c.Errors.AdminOnly)
	set(&t.Busy, c.Errors.Busy)
	set(&t.NoResults, c.Errors.NoResults)
	set(&t.NoActiveSelection, c.Errors.NoActiveSelection)
	set(&t.InvalidSelection, c.Errors.InvalidSelection)
	set(&t.FetchError, c.Errors.FetchError)
	set(&t.ConversionError, c.Errors.ConversionError)
	set(&t.SendError, c.Errors.SendError)
	set(&t.TooLarge, c.Errors.TooLarge)
	set(&t.Cancelled, c.Errors.Cancelled)
	set(&t.Timeout, c.Errors.Timeout)
	set(&t.BadRequest, c.Errors.BadRequest)
	set(&t.Internal, c.Errors.Internal)

	set(&t.Downloading, c.Progress.Downloading)
	set(&t.Converting, c.Progress.Converting)
	set(&t.SongCaption, c.Progress.SongCaption)
	set(&t.VideoCaption, c.Progress.VideoCaption)
	set(&t.FileCaption, c.Progress.FileCaption)
	set(&t.ResultsHeader, c.Progress.ResultsHeader)
	set(&t.ResultsFooter, c.Progress.ResultsFooter)
	set(&t.QualityHeader, c.Progress.QualityHeader)

	set(&t.PublicOn, c.Admin.PublicOn)
	set(&t.PrivateOn, c.Admin.PrivateOn)
	set(&t.Allowed, c.Admin.Allowed)
	set(&t.AlreadyAllowed, c.Admin.AlreadyAllowed)
	set(&t.Denied, c.Admin.Denied)
	set(&t.NotAllowed, c.Admin.NotAllowed)
	set(&t.AllowListHeader, c.Admin.AllowListHeader)
	set(&t.AllowListEmpty, c.Admin.AllowListEmpty)

	set(&t.GroupOnly, c.Commands.GroupOnly)
	set(&t.GroupInfo, c.Commands.GroupInfo)
	set(&t.NothingToConvert, c.Commands.NothingToConvert)
	set(&t.BadFormat, c.Commands.BadFormat)
	set(&t.CancelRequested, c.Commands.CancelRequested)
	set(&t.NothingToCancel, c.Commands.NothingToCancel)
	set(&t.UsageSong, c.Commands.UsageSong)
	set(&t.UsagePlay, c.Commands.UsagePlay)
	set(&t.UsageVideo, c.Commands.UsageVideo)
	set(&t.UsageConvert, c.Commands.UsageConvert)
	set(&t.UsageAllow, c.Commands.UsageAllow)
	set(&t.UsageDeny, c.Commands.UsageDeny)

	set(&t.Help, c.Help.User)
	set(&t.HelpAdmin, c.Help.Admin)
	return t
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
