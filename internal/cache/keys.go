package cache

const (
	accountPrefix = "account:"
	quotaPrefix   = "quota:"
)

func AccountByID(id string) string         { return accountPrefix + "id:" + id }
func AccountByDomain(domain string) string { return accountPrefix + "domain:" + domain }
func AccountByFolder(folder string) string { return accountPrefix + "folder:" + folder }
func AccountByAPIKey(key string) string    { return accountPrefix + "apikey:" + key }

func QuotaByID(id string) string { return quotaPrefix + "id:" + id }

// QuotaByAccount keys the quota of accountID for a YYYY-MM period.
func QuotaByAccount(accountID, period string) string {
	return quotaPrefix + "account:" + accountID + ":" + period
}

// MediaByID, MediaByAccount and JobByID are namespaced by media kind
// ("image" or "video").
func MediaByID(kind, id string) string { return kind + ":id:" + id }

func MediaByAccount(kind, accountID string) string { return kind + ":account:" + accountID }

func JobByID(kind, jobID string) string { return kind + ":job:" + jobID }
