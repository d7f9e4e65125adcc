// Package coverage samples the exercise corpus for event signatures and
// measures how much of each catalog technique's required telemetry the
// corpus actually contains.
package coverage

import (
	"github.com/ShehabAgain/threat-grapher/internal/attack"
	"github.com/ShehabAgain/threat-grapher/internal/logparse"
)

// MappingKey identifies an event signature: the log format it appears in
// and the discriminant value (EventID, EventCode, or JSON eventName).
type MappingKey struct {
	Format       logparse.Format
	Discriminant string
}

// EventComponents maps observed event signatures to the data component
// that telemetry evidences. The table is static: it encodes which catalog
// component each well-known Windows, Sysmon, and CloudTrail event feeds.
var EventComponents = map[MappingKey]attack.ComponentRef{
	// Sysmon operational log, XML events.
	{logparse.FormatXMLEvent, "1"}:  {Source: "Process", Component: "Process Creation"},
	{logparse.FormatXMLEvent, "2"}:  {Source: "File", Component: "File Modification"},
	{logparse.FormatXMLEvent, "3"}:  {Source: "Network Traffic", Component: "Network Connection Creation"},
	{logparse.FormatXMLEvent, "5"}:  {Source: "Process", Component: "Process Termination"},
	{logparse.FormatXMLEvent, "6"}:  {Source: "Driver", Component: "Driver Load"},
	{logparse.FormatXMLEvent, "7"}:  {Source: "Module", Component: "Module Load"},
	{logparse.FormatXMLEvent, "8"}:  {Source: "Process", Component: "OS API Execution"},
	{logparse.FormatXMLEvent, "9"}:  {Source: "File", Component: "File Access"},
	{logparse.FormatXMLEvent, "10"}: {Source: "Process", Component: "Process Access"},
	{logparse.FormatXMLEvent, "11"}: {Source: "File", Component: "File Creation"},
	{logparse.FormatXMLEvent, "12"}: {Source: "Windows Registry", Component: "Windows Registry Key Creation"},
	{logparse.FormatXMLEvent, "13"}: {Source: "Windows Registry", Component: "Windows Registry Key Modification"},
	{logparse.FormatXMLEvent, "14"}: {Source: "Windows Registry", Component: "Windows Registry Key Modification"},
	{logparse.FormatXMLEvent, "15"}: {Source: "File", Component: "File Creation"},
	{logparse.FormatXMLEvent, "17"}: {Source: "Named Pipe", Component: "Named Pipe Creation"},
	{logparse.FormatXMLEvent, "18"}: {Source: "Named Pipe", Component: "Named Pipe Connection"},
	{logparse.FormatXMLEvent, "22"}: {Source: "Network Traffic", Component: "Network Connection Creation"},
	{logparse.FormatXMLEvent, "23"}: {Source: "File", Component: "File Deletion"},
	{logparse.FormatXMLEvent, "25"}: {Source: "Process", Component: "Process Modification"},
	{logparse.FormatXMLEvent, "26"}: {Source: "File", Component: "File Deletion"},

	// Windows Security log, key-value export.
	{logparse.FormatKeyValue, "4688"}: {Source: "Process", Component: "Process Creation"},
	{logparse.FormatKeyValue, "592"}:  {Source: "Process", Component: "Process Creation"},
	{logparse.FormatKeyValue, "4689"}: {Source: "Process", Component: "Process Termination"},
	{logparse.FormatKeyValue, "4624"}: {Source: "Logon Session", Component: "Logon Session Creation"},
	{logparse.FormatKeyValue, "4625"}: {Source: "Logon Session", Component: "Logon Session Creation"},
	{logparse.FormatKeyValue, "4634"}: {Source: "Logon Session", Component: "Logon Session Metadata"},
	{logparse.FormatKeyValue, "4648"}: {Source: "Logon Session", Component: "Logon Session Creation"},
	{logparse.FormatKeyValue, "4663"}: {Source: "File", Component: "File Access"},
	{logparse.FormatKeyValue, "4670"}: {Source: "File", Component: "File Modification"},
	{logparse.FormatKeyValue, "4672"}: {Source: "Logon Session", Component: "Logon Session Creation"},
	{logparse.FormatKeyValue, "4720"}: {Source: "User Account", Component: "User Account Creation"},
	{logparse.FormatKeyValue, "4722"}: {Source: "User Account", Component: "User Account Modification"},
	{logparse.FormatKeyValue, "4724"}: {Source: "User Account", Component: "User Account Modification"},
	{logparse.FormatKeyValue, "4728"}: {Source: "Group", Component: "Group Modification"},
	{logparse.FormatKeyValue, "4732"}: {Source: "Group", Component: "Group Modification"},
	{logparse.FormatKeyValue, "4756"}: {Source: "Group", Component: "Group Modification"},
	{logparse.FormatKeyValue, "4768"}: {Source: "Active Directory", Component: "Active Directory Credential Request"},
	{logparse.FormatKeyValue, "4769"}: {Source: "Active Directory", Component: "Active Directory Credential Request"},
	{logparse.FormatKeyValue, "4776"}: {Source: "Active Directory", Component: "Active Directory Credential Request"},
	{logparse.FormatKeyValue, "7045"}: {Source: "Service", Component: "Service Creation"},
	{logparse.FormatKeyValue, "7036"}: {Source: "Service", Component: "Service Metadata"},
	{logparse.FormatKeyValue, "4104"}: {Source: "Script", Component: "Script Execution"},
	{logparse.FormatKeyValue, "4103"}: {Source: "Script", Component: "Script Execution"},

	// CloudTrail-style JSON, keyed by eventName.
	{logparse.FormatJSON, "cloudtrail"}:                    {Source: "Cloud Service", Component: "Cloud Service Enumeration"},
	{logparse.FormatJSON, "AssumeRole"}:                    {Source: "Cloud Service", Component: "Cloud Service Enumeration"},
	{logparse.FormatJSON, "ConsoleLogin"}:                  {Source: "Logon Session", Component: "Logon Session Creation"},
	{logparse.FormatJSON, "CreateUser"}:                    {Source: "User Account", Component: "User Account Creation"},
	{logparse.FormatJSON, "CreateAccessKey"}:               {Source: "User Account", Component: "User Account Modification"},
	{logparse.FormatJSON, "PutBucketPolicy"}:               {Source: "Cloud Storage", Component: "Cloud Storage Modification"},
	{logparse.FormatJSON, "RunInstances"}:                  {Source: "Instance", Component: "Instance Creation"},
	{logparse.FormatJSON, "StopInstances"}:                 {Source: "Instance", Component: "Instance Modification"},
	{logparse.FormatJSON, "TerminateInstances"}:            {Source: "Instance", Component: "Instance Deletion"},
	{logparse.FormatJSON, "AuthorizeSecurityGroupIngress"}: {Source: "Firewall", Component: "Firewall Rule Modification"},
}

// cloudFallbackComponent absorbs JSON event names with no explicit mapping:
// any CloudTrail record at least evidences cloud-service activity.
const cloudFallbackComponent = "Cloud Service Enumeration"

// ComponentEvents is the reverse index: data component name to the event
// signatures that evidence it. Built once at init.
var ComponentEvents = func() map[string][]MappingKey {
	idx := make(map[string][]MappingKey)
	for key, ref := range EventComponents {
		idx[ref.Component] = append(idx[ref.Component], key)
	}
	return idx
}()

// formatLabel is the human-readable prefix used in evidence labels.
func formatLabel(format logparse.Format) string {
	switch format {
	case logparse.FormatXMLEvent:
		return "Sysmon"
	case logparse.FormatKeyValue:
		return "WinSecurity"
	case logparse.FormatJSON:
		return "JSON"
	default:
		return string(format)
	}
}
