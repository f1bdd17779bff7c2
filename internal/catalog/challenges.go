package catalog

import "github.com/lijuuu/CTFArenaService/internal/model"

var defaultChallenges = []model.Challenge{
	{
		ID:    1,
		Title: "HTTP Traffic Analysis",
		Description: "Start Wireshark and capture HTTP traffic. Look for a GET request to '/secret' with a suspicious " +
			"User-Agent header containing base64 encoded data. Decode the User-Agent to find the flag.",
		Difficulty:     model.DifficultyEasy,
		Flag:           "CTF{HTTP_H3AD3R_FL4G}",
		Hints:          []string{"Filter: http", "Look for User-Agent header", "Base64 decode the User-Agent"},
		Category:       "Network Analysis",
		Points:         100,
		TrafficType:    "http",
		RequiredAction: "Capture HTTP GET request to /secret",
	},
	{
		ID:    2,
		Title: "DNS Exfiltration",
		Description: "Monitor DNS queries on your network. Look for unusually long subdomain names that contain " +
			"hex-encoded data. The flag is hidden in the DNS query data.",
		Difficulty:     model.DifficultyMedium,
		Flag:           "CTF{DNS_3XF1LTR4T10N}",
		Hints:          []string{"Filter: dns", "Look for long subdomain names", "Check for hex patterns"},
		Category:       "Network Analysis",
		Points:         200,
		TrafficType:    "dns",
		RequiredAction: "Find DNS query with hex-encoded data",
	},
	{
		ID:    3,
		Title: "FTP Credential Capture",
		Description: "Capture FTP traffic on port 21. Look for plaintext credentials being transmitted. The flag is " +
			"hidden in the password field of an FTP login attempt.",
		Difficulty:     model.DifficultyMedium,
		Flag:           "CTF{FTP_CR3D3NT14LS}",
		Hints:          []string{"Filter: ftp", "Monitor port 21", "Look for USER and PASS commands"},
		Category:       "Network Analysis",
		Points:         250,
		TrafficType:    "ftp",
		RequiredAction: "Capture FTP login with hidden flag in password",
	},
	{
		ID:    4,
		Title: "ICMP Covert Channel",
		Description: "Analyze ICMP echo requests (ping packets). Look for packets with unusual payload sizes or " +
			"patterns. The flag is embedded in the ICMP payload data.",
		Difficulty:     model.DifficultyHard,
		Flag:           "CTF{1CMP_C0V3RT_CH4NN3L}",
		Hints:          []string{"Filter: icmp", "Check payload length", "Look for hex patterns in payload"},
		Category:       "Network Analysis",
		Points:         400,
		TrafficType:    "icmp",
		RequiredAction: "Find ICMP packet with flag in payload",
	},
	{
		ID:    5,
		Title: "ARP Spoofing Detection",
		Description: "Monitor ARP traffic for spoofing attempts. Look for duplicate IP addresses or suspicious MAC " +
			"address changes. The flag is in the spoofed ARP response.",
		Difficulty:     model.DifficultyHard,
		Flag:           "CTF{ARP_SP00F1NG_D3T3CT3D}",
		Hints:          []string{"Filter: arp", "Look for duplicate IPs", "Check MAC address changes"},
		Category:       "Network Analysis",
		Points:         500,
		TrafficType:    "arp",
		RequiredAction: "Detect ARP spoofing with flag in response",
	},
	{
		ID:    6,
		Title: "TCP Stream Analysis",
		Description: "Follow TCP streams to find hidden data. Look for specific byte patterns or magic bytes in the " +
			"TCP payload. The flag is embedded in the stream data.",
		Difficulty:     model.DifficultyMedium,
		Flag:           "CTF{TCP_STR34M_FL4G}",
		Hints:          []string{"Filter: tcp", "Follow TCP stream", "Look for magic bytes 0x435446"},
		Category:       "Network Analysis",
		Points:         300,
		TrafficType:    "tcp",
		RequiredAction: "Find TCP stream with flag in payload",
	},
	{
		ID:    7,
		Title: "Caesar Cipher I (Easy)",
		Description: "Capture a TCP packet on port 1337. The flag is Caesar-ciphered with a shift of 3. " +
			"Decode it to get the answer.",
		Difficulty:     model.DifficultyEasy,
		Flag:           "CTF{EASY_CAESAR_ONE}",
		Hints:          []string{"Filter: tcp.port == 1337", "Look for 'CAESAR1' in the payload", "Shift letters back by 3"},
		Category:       "Crypto",
		Points:         50,
		TrafficType:    "tcp",
		RequiredAction: "Find and decode the Caesar cipher flag (shift 3) in TCP port 1337",
	},
	{
		ID:    8,
		Title: "Caesar Cipher II (Easy)",
		Description: "Capture a UDP packet on port 4242. The flag is Caesar-ciphered with a shift of 5. " +
			"Decode it to get the answer.",
		Difficulty:     model.DifficultyEasy,
		Flag:           "CTF{EASY_CAESAR_TWO}",
		Hints:          []string{"Filter: udp.port == 4242", "Look for 'CAESAR2' in the payload", "Shift letters back by 5"},
		Category:       "Crypto",
		Points:         50,
		TrafficType:    "udp",
		RequiredAction: "Find and decode the Caesar cipher flag (shift 5) in UDP port 4242",
	},
	{
		ID:    9,
		Title: "Caesar Cipher III (Easy)",
		Description: "Capture an ICMP packet with a unique string. The flag is Caesar-ciphered with a shift of 7. " +
			"Decode it to get the answer.",
		Difficulty:     model.DifficultyEasy,
		Flag:           "CTF{EASY_CAESAR_THREE}",
		Hints:          []string{"Filter: icmp && frame contains 'CAESAR3'", "Shift letters back by 7"},
		Category:       "Crypto",
		Points:         50,
		TrafficType:    "icmp",
		RequiredAction: "Find and decode the Caesar cipher flag (shift 7) in ICMP packet",
	},
	{
		ID:             10,
		Title:          "Plaintext Flag (Easy)",
		Description:    "Capture a TCP packet on port 2024. The flag is in plain text in the payload.",
		Difficulty:     model.DifficultyEasy,
		Flag:           "CTF{EASY_PLAINTEXT}",
		Hints:          []string{"Filter: tcp.port == 2024", "Look for 'PLAINTEXT' in the payload"},
		Category:       "Network",
		Points:         50,
		TrafficType:    "tcp",
		RequiredAction: "Find the plain text flag in TCP port 2024",
	},
	{
		ID:             11,
		Title:          "Easy DNS Flag",
		Description:    "Capture a DNS query with a unique subdomain. The flag is in the subdomain, in plain text.",
		Difficulty:     model.DifficultyEasy,
		Flag:           "CTF{EASY_DNS_FLAG}",
		Hints:          []string{"Filter: dns && frame contains 'easydnsflag'", "Check the subdomain for the flag"},
		Category:       "Network",
		Points:         50,
		TrafficType:    "dns",
		RequiredAction: "Find the flag in a DNS query with subdomain 'easydnsflag'",
	},
}
