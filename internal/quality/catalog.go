package quality

// Profile describes one rendition the transcoder can produce. Bitrate fields
// use ffmpeg rate syntax ("800k").
type Profile struct {
	Name      string
	Height    int
	MaxRate   string
	BufSize   string
	AudioRate string
}

// catalog is ordered by ascending resolution. The position of a profile in
// this table defines its quality rank and, after selection, its stream index.
var catalog = []Profile{
	{Name: "360p", Height: 360, MaxRate: "800k", BufSize: "1200k", AudioRate: "96k"},
	{Name: "480p", Height: 480, MaxRate: "1400k", BufSize: "2100k", AudioRate: "128k"},
	{Name: "720p", Height: 720, MaxRate: "2800k", BufSize: "4200k", AudioRate: "128k"},
	{Name: "1080p", Height: 1080, MaxRate: "5000k", BufSize: "7500k", AudioRate: "192k"},
	{Name: "1440p", Height: 1440, MaxRate: "9000k", BufSize: "13500k", AudioRate: "192k"},
	{Name: "2160p", Height: 2160, MaxRate: "17000k", BufSize: "25500k", AudioRate: "192k"},
}

// Catalog returns the supported profiles in ascending resolution order.
func Catalog() []Profile {
	cp := make([]Profile, len(catalog))
	copy(cp, catalog)
	return cp
}

// Lookup finds a profile by exact name.
func Lookup(name string) (Profile, bool) {
	for _, p := range catalog {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Lowest returns the lowest-resolution profile in the catalog.
func Lowest() Profile {
	return catalog[0]
}

// Names returns the profile names in catalog order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, p := range catalog {
		names[i] = p.Name
	}
	return names
}
