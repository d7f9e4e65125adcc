package graph

import (
	"regexp"
	"strings"

	"github.com/ShehabAgain/threat-grapher/internal/logparse"
)

// Extract derives candidate nodes and edges from one parsed event. Each
// format dispatches on its discriminant field (event id, event code, or
// action name) to a fixed node/edge pattern. Unrecognized discriminants fall
// back to a generic rule that still connects user, host, and process, so
// every event contributes some signal.
func Extract(ev *logparse.Event, format logparse.Format) ([]*Node, []*Edge) {
	switch format {
	case logparse.FormatXMLEvent:
		return extractXMLEvent(ev)
	case logparse.FormatKeyValue:
		return extractKeyValue(ev)
	case logparse.FormatJSON:
		return extractJSON(ev)
	case logparse.FormatDelimited:
		return extractDelimited(ev)
	}
	return nil, nil
}

// collect appends the non-nil nodes.
func collect(nodes []*Node, candidates ...*Node) []*Node {
	for _, n := range candidates {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// connect appends the non-nil edges.
func connect(edges []*Edge, candidates ...*Edge) []*Edge {
	for _, e := range candidates {
		if e != nil {
			edges = append(edges, e)
		}
	}
	return edges
}

func extractXMLEvent(ev *logparse.Event) ([]*Node, []*Edge) {
	var nodes []*Node
	var edges []*Edge

	eid := ev.Get("EventID")
	host := NewNode(EntityHost, ev.Get("Computer"))
	nodes = collect(nodes, host)

	switch eid {
	case "1": // process create
		image := NewNode(EntityProcess, ev.Get("Image"))
		parent := NewNode(EntityProcess, ev.Get("ParentImage"))
		user := NewNode(EntityUser, ev.Get("User"))
		nodes = collect(nodes, image, parent, user)
		edges = connect(edges,
			NewEdge(parent, image, "spawned", RelationProcessCreation),
			NewEdge(user, image, "ran", RelationExecution),
			NewEdge(image, host, "on", RelationHostActivity),
		)

	case "3": // network connection
		image := NewNode(EntityProcess, ev.Get("Image"))
		src := NewNode(EntityIP, ev.Get("SourceIp"))
		dst := NewNode(EntityIP, ev.Get("DestinationIp"))
		nodes = collect(nodes, image, src, dst)
		label := "connected"
		if port := ev.Get("DestinationPort"); port != "" {
			label = "connected:" + port
		}
		edges = connect(edges,
			NewEdge(image, dst, label, RelationNetwork),
			NewEdge(src, image, "source", RelationNetwork),
		)

	case "6": // driver loaded
		driver := NewNode(EntityDriver, ev.Get("ImageLoaded"))
		nodes = collect(nodes, driver)
		edges = connect(edges, NewEdge(host, driver, "loaded_driver", RelationDriverLoad))

	case "7": // image (DLL) loaded
		image := NewNode(EntityProcess, ev.Get("Image"))
		loaded := NewNode(EntityFile, ev.Get("ImageLoaded"))
		nodes = collect(nodes, image, loaded)
		edges = connect(edges, NewEdge(image, loaded, "loaded", RelationImageLoad))

	case "8", "10": // remote thread / process access
		source := NewNode(EntityProcess, ev.Get("SourceImage"))
		target := NewNode(EntityProcess, ev.Get("TargetImage"))
		nodes = collect(nodes, source, target)
		label := "accessed"
		if eid == "8" {
			label = "injected_into"
		}
		edges = connect(edges, NewEdge(source, target, label, RelationProcessInteraction))

	case "11": // file create
		image := NewNode(EntityProcess, ev.Get("Image"))
		file := NewNode(EntityFile, ev.Get("TargetFilename"))
		nodes = collect(nodes, image, file)
		edges = connect(edges, NewEdge(image, file, "created_file", RelationFileCreation))

	case "12", "13", "14": // registry
		image := NewNode(EntityProcess, ev.Get("Image"))
		reg := NewNode(EntityRegistry, ev.Get("TargetObject"))
		nodes = collect(nodes, image, reg)
		edges = connect(edges, NewEdge(image, reg, "modified_registry", RelationRegistry))

	case "22": // dns query
		image := NewNode(EntityProcess, ev.Get("Image"))
		dns := NewNode(EntityDNS, ev.Get("QueryName"))
		nodes = collect(nodes, image, dns)
		edges = connect(edges, NewEdge(image, dns, "dns_query", RelationDNS))

	default:
		image := NewNode(EntityProcess, ev.Get("Image"))
		user := NewNode(EntityUser, ev.Get("User"))
		nodes = collect(nodes, image, user)
		edges = connect(edges,
			NewEdge(image, host, "event_"+eid, RelationActivity),
			NewEdge(user, image, "associated", RelationUserActivity),
		)
	}

	return nodes, edges
}

func extractKeyValue(ev *logparse.Event) ([]*Node, []*Edge) {
	var nodes []*Node
	var edges []*Edge

	code := ev.Get("EventCode")
	host := NewNode(EntityHost, ev.Get("ComputerName"))
	user := NewNode(EntityUser, ev.Get("User"))
	nodes = collect(nodes, host, user)

	// Values may arrive as structured fields or buried in the legacy
	// free-text Message blob; fields win when both are present.
	lookup := func(label string) string {
		if v := ev.Get(label); v != "" {
			return v
		}
		return minedField(ev.Get("Message"), label)
	}

	switch code {
	case "7045": // service install
		svc := NewNode(EntityService, lookup("Service Name"))
		file := NewNode(EntityFile, lookup("Service File Name"))
		nodes = collect(nodes, svc, file)
		edges = connect(edges,
			NewEdge(host, svc, "installed_service", RelationServiceInstall),
			NewEdge(svc, file, "image_path", RelationServiceBinary),
		)

	case "4688", "592": // process create
		newProc := lookup("New Process Name")
		if newProc == "" {
			newProc = lookup("Process Name")
		}
		parentProc := lookup("Creator Process Name")
		if parentProc == "" {
			parentProc = lookup("Parent Process Name")
		}
		proc := NewNode(EntityProcess, newProc)
		parent := NewNode(EntityProcess, parentProc)
		nodes = collect(nodes, proc, parent)
		edges = connect(edges,
			NewEdge(parent, proc, "spawned", RelationProcessCreation),
			NewEdge(user, proc, "ran", RelationExecution),
		)

	case "4624", "4625": // logon success / failure
		ip := NewNode(EntityIP, lookup("Source Network Address"))
		nodes = collect(nodes, ip)
		label := "logged_on"
		if code == "4625" {
			label = "failed_logon"
		}
		edges = connect(edges,
			NewEdge(user, host, label, RelationAuthentication),
			NewEdge(ip, host, "logon_source", RelationNetwork),
		)

	case "4104": // powershell script block
		edges = connect(edges, NewEdge(user, host, "executed_script", RelationScriptExecution))

	default:
		edges = connect(edges, NewEdge(user, host, "event_"+code, RelationActivity))
	}

	return nodes, edges
}

// minedLabels are the free-text labels mined from legacy message blobs. The
// pattern map is built once at startup and immutable afterwards.
var minedLabels = map[string]*regexp.Regexp{}

func init() {
	for _, label := range []string{
		"Service Name",
		"Service File Name",
		"New Process Name",
		"Process Name",
		"Creator Process Name",
		"Parent Process Name",
		"Source Network Address",
	} {
		minedLabels[label] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `\s*[:=]\s*(.+)`)
	}
}

// minedField scans a free-text message for "label: value" or "label=value"
// and returns the value, bounded to the rest of that line.
func minedField(message, label string) string {
	if message == "" {
		return ""
	}
	re, ok := minedLabels[label]
	if !ok {
		return ""
	}
	if m := re.FindStringSubmatch(message); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractJSON(ev *logparse.Event) ([]*Node, []*Edge) {
	var nodes []*Node
	var edges []*Edge

	user := NewNode(EntityUser, jsonUserName(ev))
	nodes = collect(nodes, user)

	srcIP := firstValue(ev, "sourceIPAddress", "sourceIPs[0]", "source.ip")
	ip := NewNode(EntityIP, srcIP)
	nodes = collect(nodes, ip)
	edges = connect(edges, NewEdge(user, ip, "from_ip", RelationSource))

	eventName := firstValue(ev, "eventName", "verb", "operation")
	if eventName != "" {
		api := NewNode(EntityAPICall, eventName)
		nodes = collect(nodes, api)
		edges = connect(edges, NewEdge(user, api, "called", RelationAPICall))

		target := firstValue(ev,
			"requestParameters.userName",
			"requestParameters.bucketName",
			"requestParameters.instanceId",
			"objectRef.resource",
			"requestURI",
		)
		res := NewNode(EntityResource, target)
		nodes = collect(nodes, res)
		edges = connect(edges, NewEdge(api, res, "on_resource", RelationTarget))
	}

	// Cloud account plus region stand in for a host.
	account := firstValue(ev, "recipientAccountId", "accountId")
	if account != "" {
		hostLabel := account
		if region := ev.Get("awsRegion"); region != "" {
			hostLabel = account + "/" + region
		}
		nodes = collect(nodes, NewNode(EntityHost, hostLabel))
	}

	return nodes, edges
}

// jsonUserName resolves the acting identity across the cloud audit schemas
// seen in exercise datasets, in priority order.
func jsonUserName(ev *logparse.Event) string {
	if v := ev.Get("userIdentity.userName"); v != "" {
		return v
	}
	if arn := ev.Get("userIdentity.arn"); arn != "" {
		if idx := strings.LastIndex(arn, "/"); idx >= 0 {
			return arn[idx+1:]
		}
		return arn
	}
	return firstValue(ev, "userIdentity.principalId", "user.username", "userName", "actor.email")
}

// firstValue returns the first non-empty value among the given keys.
func firstValue(ev *logparse.Event, keys ...string) string {
	for _, key := range keys {
		if v := ev.Get(key); v != "" {
			return v
		}
	}
	return ""
}

func extractDelimited(ev *logparse.Event) ([]*Node, []*Edge) {
	var nodes []*Node
	var edges []*Edge

	client := NewNode(EntityIP, ev.Get("client_ip"))
	var server *Node
	if srv := ev.Get("server_ip"); srv != "" {
		server = NewNodeLabeled(EntityIP, srv, "server:"+srv)
	}
	user := NewNode(EntityUser, ev.Get("username"))
	nodes = collect(nodes, client, server, user)

	method := ev.Get("method")
	uri := ev.Get("uri_stem")
	if method != "" && uri != "" {
		res := NewNode(EntityResource, method+" "+uri)
		nodes = collect(nodes, res)
		label := method
		if status := ev.Get("protocol_status"); status != "" {
			label = method + " (" + status + ")"
		}
		edges = connect(edges,
			NewEdge(client, res, label, RelationHTTPRequest),
			NewEdge(res, server, "served_by", RelationServer),
		)
	}

	edges = connect(edges, NewEdge(user, client, "from", RelationUserSource))

	return nodes, edges
}
