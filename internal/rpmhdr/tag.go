package rpmhdr

// Tag is the key half of an RPM header's key/value entries.
type Tag int32

// Region and lead tags.
const (
	TagHeaderImage      Tag = 61
	TagHeaderSignatures Tag = 62
	TagHeaderImmutable  Tag = 63
	TagHeaderI18nTable  Tag = 100
)

// Tags consulted by package_info, dependencies, scripts, and triggers
// (spec §4.8). Values match rpm's rpmtag.h.
const (
	TagName    Tag = 1000
	TagVersion Tag = 1001
	TagRelease Tag = 1002
	TagEpoch   Tag = 1003

	TagBuildTime Tag = 1006
	TagSize      Tag = 1009

	TagOS   Tag = 1021
	TagArch Tag = 1022

	TagSummary      Tag = 1004
	TagDescription  Tag = 1005
	TagVendor       Tag = 1011
	TagLicense      Tag = 1014
	TagPackager     Tag = 1015
	TagGroup        Tag = 1016
	TagURL          Tag = 1020
	TagBuildHost    Tag = 1007

	TagPreInstall     Tag = 1023
	TagPostInstall    Tag = 1024
	TagPreUninstall   Tag = 1025
	TagPostUninstall  Tag = 1026
	TagOldFilenames   Tag = 1027
	TagFileSizes      Tag = 1028
	TagFileModes      Tag = 1030
	TagFileRDevs      Tag = 1033
	TagFileMTimes     Tag = 1034
	TagFileDigests    Tag = 1035
	TagFileLinkTos    Tag = 1036
	TagFileFlags      Tag = 1037
	TagFileUsername   Tag = 1039
	TagFileGroupname  Tag = 1040
	TagSourceRPM      Tag = 1044
	TagFileVerifyFlags Tag = 1045
	TagProvideName    Tag = 1047
	TagRequireFlags   Tag = 1048
	TagRequireName    Tag = 1049
	TagRequireVersion Tag = 1050
	TagConflictFlags  Tag = 1053
	TagConflictName   Tag = 1054
	TagConflictVersion Tag = 1055
	TagTriggerScripts Tag = 1065
	TagTriggerName    Tag = 1066
	TagTriggerVersion Tag = 1067
	TagTriggerFlags   Tag = 1068
	TagTriggerIndex   Tag = 1069

	TagPreInstallProg    Tag = 1085
	TagPostInstallProg   Tag = 1086
	TagPreUninstallProg  Tag = 1087
	TagPostUninstallProg Tag = 1088
	TagBuildArchs        Tag = 1089

	TagObsoleteName Tag = 1090

	TagFileInodes   Tag = 1096
	TagFileLangs    Tag = 1097

	TagProvideVersion  Tag = 1113
	TagProvideFlags    Tag = 1112
	TagObsoleteVersion Tag = 1115
	TagObsoleteFlags   Tag = 1114

	TagDirIndexes Tag = 1116
	TagBaseNames  Tag = 1117
	TagDirNames   Tag = 1118

	TagTriggerScriptProg Tag = 1092

	TagFileDigestAlgo Tag = 5011
	TagFileCaps       Tag = 5010

	TagPayloadFormat     Tag = 1124
	TagPayloadCompressor Tag = 1125
)

// Trigger flag bits (subset of rpm's script-type bits, spec §4.8's
// "script + interpreter + list of conditions").
const (
	SenseTriggerPrein    uint32 = 1 << 8
	SenseTriggerUn       uint32 = 1 << 9
	SenseTriggerPostun   uint32 = 1 << 10
	SenseTriggerPostin   uint32 = 1 << 5
	SenseTriggerIn       uint32 = 1 << 4
)
