package browser

import (
	"fmt"
	"math/rand"
	"strings"
)

// StealthProfile is the randomized browser identity assumed by one session.
// Every session gets a fresh profile so fingerprints never repeat across
// sessions within a run.
type StealthProfile struct {
	UserAgent           string
	ViewportWidth       int
	ViewportHeight      int
	Locale              string
	TimezoneID          string
	AcceptLanguage      string
	Platform            string
	HardwareConcurrency int
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

var viewports = []struct{ Width, Height int }{
	{1920, 1080},
	{1366, 768},
	{1440, 900},
	{1536, 864},
	{1600, 900},
}

var concurrencies = []int{4, 8, 12, 16}

// NewStealthProfile draws a random but internally consistent identity: the
// platform always agrees with the chosen user agent.
func NewStealthProfile() StealthProfile {
	ua := userAgents[rand.Intn(len(userAgents))]
	vp := viewports[rand.Intn(len(viewports))]

	platform := "Win32"
	switch {
	case strings.Contains(ua, "Macintosh"):
		platform = "MacIntel"
	case strings.Contains(ua, "X11; Linux"):
		platform = "Linux x86_64"
	}

	return StealthProfile{
		UserAgent:           ua,
		ViewportWidth:       vp.Width,
		ViewportHeight:      vp.Height,
		Locale:              "tr-TR",
		TimezoneID:          "Europe/Istanbul",
		AcceptLanguage:      "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7",
		Platform:            platform,
		HardwareConcurrency: concurrencies[rand.Intn(len(concurrencies))],
	}
}

// initScript builds the environment-spoofing script injected before any page
// script runs. It masks the automation flags headless Chromium leaks and
// pins the spoofed values to the profile.
func (p StealthProfile) initScript() string {
	return fmt.Sprintf(`
(() => {
  Object.defineProperty(navigator, 'webdriver', { get: () => undefined });

  Object.defineProperty(navigator, 'plugins', {
    get: () => [
      { name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
      { name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
      { name: 'Native Client', filename: 'internal-nacl-plugin' }
    ],
  });

  Object.defineProperty(navigator, 'languages', { get: () => ['tr-TR', 'tr', 'en-US', 'en'] });
  Object.defineProperty(navigator, 'platform', { get: () => '%s' });
  Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });

  const originalQuery = window.navigator.permissions.query;
  window.navigator.permissions.query = (parameters) => (
    parameters.name === 'notifications'
      ? Promise.resolve({ state: Notification.permission })
      : originalQuery(parameters)
  );

  window.chrome = window.chrome || {};
  window.chrome.runtime = window.chrome.runtime || {};

  Object.defineProperty(screen, 'width', { get: () => %d });
  Object.defineProperty(screen, 'height', { get: () => %d });
  Object.defineProperty(screen, 'availWidth', { get: () => %d });
  Object.defineProperty(screen, 'availHeight', { get: () => %d });

  const toBlob = HTMLCanvasElement.prototype.toBlob;
  const toDataURL = HTMLCanvasElement.prototype.toDataURL;
  const noisify = (canvas) => {
    const ctx = canvas.getContext('2d');
    if (!ctx || canvas.width === 0 || canvas.height === 0) return;
    const image = ctx.getImageData(0, 0, canvas.width, canvas.height);
    for (let i = 0; i < image.data.length; i += 997) {
      image.data[i] = image.data[i] ^ 1;
    }
    ctx.putImageData(image, 0, 0);
  };
  HTMLCanvasElement.prototype.toBlob = function (...args) {
    noisify(this);
    return toBlob.apply(this, args);
  };
  HTMLCanvasElement.prototype.toDataURL = function (...args) {
    noisify(this);
    return toDataURL.apply(this, args);
  };

  for (const key of Object.keys(window)) {
    if (key.startsWith('cdc_')) {
      delete window[key];
    }
  }
})();
`, p.Platform, p.HardwareConcurrency,
		p.ViewportWidth, p.ViewportHeight, p.ViewportWidth, p.ViewportHeight-40)
}
