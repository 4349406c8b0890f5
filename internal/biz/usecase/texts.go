package usecase

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/DevRickLin/feishu-media-bridge/internal/biz/domain"
)

// ReplyTexts holds every user-visible reply. Format strings use fmt verbs.
type ReplyTexts struct {
	AccessDenied      string
	AdminOnly         string
	Busy              string
	NoResults         string
	NoActiveSelection string
	InvalidSelection  string // %d: number of options
	FetchError        string
	ConversionError   string
	SendError         string
	TooLarge          string
	Cancelled         string
	Timeout           string
	BadRequest        string
	Internal          string

	Downloading  string // %s: title or url
	Converting   string // %s: target format
	SongCaption  string
	VideoCaption string
	FileCaption  string

	ResultsHeader string // %s: query
	ResultsFooter string
	QualityHeader string

	PublicOn        string
	PrivateOn       string
	Allowed         string // %s: identity
	AlreadyAllowed  string // %s: identity
	Denied          string // %s: identity
	NotAllowed      string // %s: identity
	AllowListHeader string // %s: mode
	AllowListEmpty  string

	GroupOnly        string
	GroupInfo        string // %s: name, %d: members
	NothingToConvert string
	BadFormat        string // %s: supported formats
	CancelRequested  string
	NothingToCancel  string

	UsageSong    string
	UsagePlay    string
	UsageVideo   string
	UsageConvert string
	UsageAllow   string
	UsageDeny    string

	Help      string
	HelpAdmin string
}

// DefaultReplyTexts returns the built-in replies
func DefaultReplyTexts() *ReplyTexts {
	return &ReplyTexts{
		AccessDenied:      "Sorry, this bot is private. Ask the admin to add you to the allow list.",
		AdminOnly:         "This command is for the admin only.",
		Busy:              "Still working on your previous request. Please wait for it to finish or send !cancel.",
		NoResults:         "No results found.",
		NoActiveSelection: "Nothing to select. Search first with !song <query>.",
		InvalidSelection:  "Invalid selection. Please choose a number between 1 and %d.",
		FetchError:        "Error downloading the media.",
		ConversionError:   "Conversion error.",
		SendError:         "Failed to send the media.",
		TooLarge:          "The file is too large to send.",
		Cancelled:         "Cancelled.",
		Timeout:           "The request took too long and was stopped.",
		BadRequest:        "That request is missing something. Send !help for usage.",
		Internal:          "Something went wrong.",

		Downloading:  "Downloading: %s",
		Converting:   "Converting to %s...",
		SongCaption:  "Here is your song",
		VideoCaption: "Here is your video",
		FileCaption:  "Here is your file",

		ResultsHeader: "Results for \"%s\":",
		ResultsFooter: "Reply with a number to download, e.g. !download 1",
		QualityHeader: "Choose a quality by replying with its number:",

		PublicOn:        "Public mode enabled. Everyone can use the bot.",
		PrivateOn:       "Private mode enabled. Only allowed users can use the bot.",
		Allowed:         "%s can now use the bot.",
		AlreadyAllowed:  "%s is already allowed.",
		Denied:          "%s was removed from the allow list.",
		NotAllowed:      "%s was not on the allow list.",
		AllowListHeader: "Mode: %s\nAllowed:",
		AllowListEmpty:  "(nobody)",

		GroupOnly:        "This command only works in groups.",
		GroupInfo:        "Group: %s\nMembers: %d",
		NothingToConvert: "Send an audio or video file first, then !convert <format>.",
		BadFormat:        "Unsupported format. Use one of: %s",
		CancelRequested:  "Cancelling your request...",
		NothingToCancel:  "Nothing is running.",

		UsageSong:    "Usage: !song <query>",
		UsagePlay:    "Usage: !play <query>",
		UsageVideo:   "Usage: !video <url>",
		UsageConvert: "Usage: !convert <mp3|wav|ogg|opus|m4a|flac>",
		UsageAllow:   "Usage: !allow <id or @mention>",
		UsageDeny:    "Usage: !deny <id or @mention>",

		Help: strings.Join([]string{
			"Commands:",
			"!song <query> - search and list the top 5 results",
			"!play <query> - download the best match",
			"!download <n> or just <n> - pick a result",
			"!video <url> - download a video, choosing the quality",
			"!convert <format> - convert the last audio/video you sent",
			"!groupinfo - show group info",
			"!cancel - stop your running request",
			"Send a YouTube or SoundCloud link to download it directly.",
		}, "\n"),
		HelpAdmin: strings.Join([]string{
			"Admin:",
			"!public / !private - switch access mode",
			"!allow <id> / !deny <id> - edit the allow list",
			"!allowlist - show the allow list",
		}, "\n"),
	}
}

// ForError maps an error to exactly one reply. UnknownCommand maps to no reply.
func (t *ReplyTexts) ForError(err error) string {
	switch domain.KindOf(err) {
	case "":
		return ""
	case domain.KindAccessDenied:
		return t.AccessDenied
	case domain.KindAdminOnly:
		return t.AdminOnly
	case domain.KindUnknownCommand:
		return ""
	case domain.KindBusy:
		return t.Busy
	case domain.KindNoSearchResults:
		return t.NoResults
	case domain.KindInvalidSelection:
		if errors.Is(err, domain.ErrSelectionOutOfRange) {
			return t.OutOfRange(domain.MaxSearchItems)
		}
		return t.NoActiveSelection
	case domain.KindFetch:
		return t.FetchError
	case domain.KindConversion:
		return t.ConversionError
	case domain.KindSend:
		if errors.Is(err, domain.ErrTooLarge) {
			return t.TooLarge
		}
		return t.SendError
	case domain.KindCancelled:
		return t.Cancelled
	case domain.KindTimeout:
		return t.Timeout
	case domain.KindBadRequest:
		return t.BadRequest
	}
	return t.Internal
}

// OutOfRange formats the invalid-selection reply for n options
func (t *ReplyTexts) OutOfRange(n int) string {
	return fmt.Sprintf(t.InvalidSelection, n)
}

// FormatResults renders a search result list
func (t *ReplyTexts) FormatResults(set *domain.SearchResultSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, t.ResultsHeader, set.Query)
	for i, item := range set.Items {
		fmt.Fprintf(&b, "\n%d. %s", i+1, item.Title)
		if item.Duration > 0 {
			fmt.Fprintf(&b, "\n   Duration: %s", item.FormatDuration())
		}
	}
	b.WriteString("\n")
	b.WriteString(t.ResultsFooter)
	return b.String()
}

// FormatQualityOffer renders the quality choices
func (t *ReplyTexts) FormatQualityOffer(offer *domain.QualityOffer) string {
	var b strings.Builder
	b.WriteString(t.QualityHeader)
	for i, q := range offer.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, q)
	}
	return b.String()
}

// FormatAllowList renders the access configuration
func (t *ReplyTexts) FormatAllowList(cfg *domain.BotConfig) string {
	mode := "private"
	if cfg.PublicMode {
		mode = "public"
	}
	var b strings.Builder
	fmt.Fprintf(&b, t.AllowListHeader, mode)
	ids := cfg.AllowedIdentities()
	if len(ids) == 0 {
		b.WriteString("\n")
		b.WriteString(t.AllowListEmpty)
		return b.String()
	}
	for _, id := range ids {
		b.WriteString("\n- ")
		b.WriteString(string(id))
	}
	return b.String()
}

// HelpFor returns the help text, with the admin section for the admin only
func (t *ReplyTexts) HelpFor(admin bool) string {
	if admin {
		return t.Help + "\n\n" + t.HelpAdmin
	}
	return t.Help
}

// SupportedFormats lists the !convert targets
func SupportedFormats() string {
	names := []string{
		string(domain.FormatMP3), string(domain.FormatWAV), string(domain.FormatOGG),
		string(domain.FormatOpus), string(domain.FormatM4A), string(domain.FormatFLAC),
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
