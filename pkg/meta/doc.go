// Package meta resolves a component's declared metadata into the flat property
// map a driver initializes from.
//
// Resolution runs in a fixed order. WASM components are first forced into
// strict sandbox mode when the runtime requires it. Then every entry's text is
// taken and its placeholders are substituted: {uuid}, {podName}, {namespace}
// and finally {appID}. The result is a MetaBase whose properties can be looked
// up case-insensitively.
//
// Resolution performs no I/O. Secret and environment references are resolved
// beforehand by package secretstores; entries still carrying a reference here
// resolve to the empty string.
//
//	m := meta.NewMeta(meta.Options{
//	    ID:        "checkout",
//	    Namespace: "prod",
//	    PodName:   os.Getenv("POD_NAME"),
//	})
//
//	base, err := m.ToBaseMetadata(comp)
//	if meta.IsPodNameNotSet(err) {
//	    // the component needs a pod name
//	}
//	host, _ := base.GetProperty("redisHost", "host")
package meta
