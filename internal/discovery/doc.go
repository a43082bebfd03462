// Package discovery finds sign controllers on the local network over mDNS
// and advertises a running signctl gateway.
//
// Controllers (or the serial-to-IP bridges in front of them) are expected to
// register the "_tsisp003._tcp" service. Two TXT keys are understood:
//
//	addr=01          two-digit hex controller address
//	transport=tcp    informational only
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	scanner.Timeout = 5 * time.Second
//	controllers, err := scanner.Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, c := range controllers {
//	    fmt.Println(c)
//	}
//
// A discovered controller carries no credentials. Controller.ToConfig fills
// in the endpoint and address; the seed and password offsets must be supplied
// before the entry can be saved.
//
// # Network Requirements
//
// Multicast must be available on the interface and UDP port 5353 open.
package discovery
