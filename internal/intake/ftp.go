package intake

import (
	"context"
	"net"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultFTPTimeout bounds the FTP dial.
const DefaultFTPTimeout = 30 * time.Second

// FetchFTP downloads a name list over anonymous FTP. Files ending in .csv
// contribute their first column; anything else is read as free text.
func FetchFTP(ctx context.Context, ftpURL string) ([]string, error) {
	host, p, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("intake: ftp connecting", zap.String("host", host), zap.String("path", p))

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(DefaultFTPTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "intake: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		return nil, eris.Wrap(err, "intake: ftp login")
	}

	resp, err := conn.Retr(p)
	if err != nil {
		return nil, eris.Wrap(err, "intake: ftp retrieve")
	}
	defer resp.Close() //nolint:errcheck

	if strings.EqualFold(path.Ext(p), ".csv") {
		return ReadCSV(resp)
	}
	return ReadText(resp)
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, p string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "intake: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("intake: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	p = u.Path
	if p == "" {
		return "", "", eris.New("intake: empty path in ftp url")
	}
	return host, p, nil
}
