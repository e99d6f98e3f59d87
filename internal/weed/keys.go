package weed

// Plant types stored in the type leaf.
const (
	PlantPluginInfo        int32 = 1
	PlantFilterClass       int32 = 2
	PlantFilterInstance    int32 = 3
	PlantChannelTemplate   int32 = 4
	PlantParameterTemplate int32 = 5
	PlantChannel           int32 = 6
	PlantParameter         int32 = 7
	PlantGUI               int32 = 8
	PlantHostInfo          int32 = 9
)

var plantTypeNames = map[int32]string{
	PlantPluginInfo:        "plugin_info",
	PlantFilterClass:       "filter_class",
	PlantFilterInstance:    "filter_instance",
	PlantChannelTemplate:   "channel_template",
	PlantParameterTemplate: "parameter_template",
	PlantChannel:           "channel",
	PlantParameter:         "parameter",
	PlantGUI:               "gui",
	PlantHostInfo:          "host_info",
}

// PlantTypeName returns a short label for a plant type.
func PlantTypeName(t int32) string {
	if name, ok := plantTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Well-known leaf keys.
const (
	LeafType = "type"

	// plugin info
	LeafFilters      = "filters"
	LeafHostInfo     = "host_info"
	LeafVersion      = "version"
	LeafPackageName  = "package_name"
	LeafMaintainer   = "maintainer"
	LeafURL          = "url"
	LeafDescription  = "description"
	LeafErrorNumber  = "error_number"
	LeafErrorText    = "error_text"
	LeafPluginInfo   = "plugin_info"
	LeafHostName     = "host_name"
	LeafHostVersion  = "host_version"
	LeafFlags        = "flags"
	LeafVerbosity    = "verbosity"
	LeafABIVersion   = "weed_abi_version"
	LeafFilterAPIVer = "filter_api_version"

	// filter class
	LeafName             = "name"
	LeafAuthor           = "author"
	LeafExtraAuthors     = "extra_authors"
	LeafLicense          = "license"
	LeafCopyright        = "copyright"
	LeafInitFunc         = "init_func"
	LeafDeinitFunc       = "deinit_func"
	LeafProcessFunc      = "process_func"
	LeafInParamTmpls     = "in_param_tmpls"
	LeafOutParamTmpls    = "out_param_tmpls"
	LeafInChanTmpls      = "in_chan_tmpls"
	LeafOutChanTmpls     = "out_chan_tmpls"
	LeafGUI              = "gui"
	LeafPaletteList      = "palette_list"
	LeafPreferredFPS     = "target_fps"
	LeafMaxAudioChannels = "max_audio_chans"

	// instance and channel
	LeafFilterClass   = "filter_class"
	LeafInParameters  = "in_parameters"
	LeafOutParameters = "out_parameters"
	LeafInChannels    = "in_channels"
	LeafOutChannels   = "out_channels"
	LeafTemplate      = "template"
	LeafInstanceID    = "instance_id"
	LeafDisabled      = "disabled"
	LeafIsAudio       = "is_audio"
	LeafPixelData     = "pixel_data"
	LeafCurrentPal    = "current_palette"
	LeafWidth         = "width"
	LeafHeight        = "height"
	LeafAudioData     = "audio_data"
	LeafAudioDataLen  = "audio_data_len"
	LeafAudioRate     = "audio_rate"
	LeafAudioChannels = "audio_channels"
	LeafRowstrides    = "rowstrides"
	LeafMaxRepeats    = "max_repeats"

	// parameters
	LeafDefault      = "default"
	LeafMin          = "min"
	LeafMax          = "max"
	LeafParamType    = "param_type"
	LeafNewDefault   = "new_default"
	LeafGroup        = "group"
	LeafColorspace   = "colorspace"
	LeafIsTransition = "is_transition"
	LeafIsVolMaster  = "is_vol_master"
	LeafValue        = "value"

	// gui
	LeafWrap        = "wrap"
	LeafMaxChars    = "maxchars"
	LeafLabel       = "label"
	LeafDecimals    = "decimals"
	LeafStepSize    = "step_size"
	LeafUseMnemonic = "use_mnemonic"
	LeafChoices     = "choices"
	LeafHidden      = "hidden"
)

// Parameter kinds for the param_type leaf.
const (
	ParamUnspecified int32 = 0
	ParamInteger     int32 = 1
	ParamFloat       int32 = 2
	ParamText        int32 = 3
	ParamSwitch      int32 = 4
	ParamColor       int32 = 5
)

const (
	ColorspaceRGB  int32 = 1
	ColorspaceRGBA int32 = 2
)

// Filter class flag bits.
const (
	FilterNonRealtime        int32 = 1 << 0
	FilterIsConverter        int32 = 1 << 1
	FilterHintStateless      int32 = 1 << 2
	FilterPrefLinearGamma    int32 = 1 << 3
	FilterPrefPremultAlpha   int32 = 1 << 4
	FilterHintProcessLast    int32 = 1 << 5
	FilterHintMayThread      int32 = 1 << 6
	FilterChannelSizesVary   int32 = 1 << 8
	FilterPalettesMayVary    int32 = 1 << 9
	FilterAudioRatesMayVary  int32 = 1 << 16
	FilterChannelLayoutsVary int32 = 1 << 15
)

// Channel template flag bits.
const (
	ChannelReinitOnSizeChange    int32 = 1 << 0
	ChannelReinitOnPaletteChange int32 = 1 << 1
	ChannelReinitOnRowstrides    int32 = 1 << 2
	ChannelOptional              int32 = 1 << 3
	ChannelCanDoInplace          int32 = 1 << 4
	ChannelNeedsNaturalSize      int32 = 1 << 5
)

// Parameter template flag bits.
const (
	ParameterReinitOnValueChange int32 = 1 << 0
	ParameterVariableSize        int32 = 1 << 1
	ParameterValuePerChannel     int32 = 1 << 2
	ParameterValueIrrelevant     int32 = 1 << 3
)

// Host info flag bits.
const (
	HostSupportsLinearGamma  int32 = 1 << 0
	HostSupportsPremultAlpha int32 = 1 << 1
)

// Verbosity levels published in the host info plant.
const (
	VerbositySilent   int32 = -2
	VerbosityCritical int32 = -1
	VerbosityError    int32 = 0
	VerbosityWarn     int32 = 1
	VerbosityInfo     int32 = 2
	VerbosityDebug    int32 = 3
)

// Palettes. PaletteEnd terminates palette lists.
const (
	PaletteEnd      int32 = 0
	PaletteRGB24    int32 = 1
	PaletteBGR24    int32 = 2
	PaletteRGBA32   int32 = 3
	PaletteARGB32   int32 = 4
	PaletteRGBFloat int32 = 5
	PaletteBGRA32   int32 = 7
	PaletteYUV422P  int32 = 513
	PaletteYUV420P  int32 = 514
	PaletteYVU420P  int32 = 515
	PaletteYUV444P  int32 = 516
	PaletteYUVA4444 int32 = 517
	PaletteYUYV     int32 = 518
	PaletteUYVY     int32 = 519
	PaletteYUV888   int32 = 521
	PaletteYUVA8888 int32 = 522
	PaletteA8       int32 = 1026
	PaletteAFloat   int32 = 1027
)
